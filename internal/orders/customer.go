package orders

import "fmt"

const (
	CustomerIndividual   = "individual"
	CustomerOrganization = "company"
)

// Customer is either an Individual or an Organization.
type Customer interface {
	CustomerType() string
	validate() error
}

type Individual struct {
	Name    string `json:"name"`
	Surname string `json:"surname"`
}

type Organization struct {
	Type string `json:"organization_type"`
	Name string `json:"organization_name"`
	Code string `json:"organization_code"`
}

func (Individual) CustomerType() string   { return CustomerIndividual }
func (Organization) CustomerType() string { return CustomerOrganization }

func (c Individual) validate() error {
	if c.Name == "" || c.Surname == "" {
		return fmt.Errorf("name and surname are required")
	}
	return nil
}

func (c Organization) validate() error {
	if c.Type == "" || c.Name == "" || c.Code == "" {
		return fmt.Errorf("organization type, name and code are required")
	}
	return nil
}

func ValidateCustomer(c Customer) error {
	if c == nil {
		return fmt.Errorf("customer details are required")
	}
	return c.validate()
}

// customerColumns flattens a customer into the nullable orders columns.
type customerColumns struct {
	Type                      string
	Name, Surname             *string
	OrgType, OrgName, OrgCode *string
}

func columnsOf(c Customer) customerColumns {
	switch v := c.(type) {
	case Individual:
		return customerColumns{Type: CustomerIndividual, Name: &v.Name, Surname: &v.Surname}
	case Organization:
		return customerColumns{Type: CustomerOrganization, OrgType: &v.Type, OrgName: &v.Name, OrgCode: &v.Code}
	}
	return customerColumns{}
}

func customerFrom(typ, name, surname, orgType, orgName, orgCode string) (Customer, error) {
	switch typ {
	case CustomerIndividual:
		return Individual{Name: name, Surname: surname}, nil
	case CustomerOrganization:
		return Organization{Type: orgType, Name: orgName, Code: orgCode}, nil
	}
	return nil, fmt.Errorf("unknown customer type %q", typ)
}
