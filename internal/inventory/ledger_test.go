package inventory

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
)

var decrementSQL = "(?s)" + regexp.QuoteMeta("UPDATE product_variants SET quantity = quantity - $1")

func TestTryDecrementPrimary(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	mock.ExpectExec(decrementSQL + ".*is_primary AND quantity >=").
		WithArgs(2, int64(7)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	ok, err := New(mock).TryDecrement(context.Background(), 7, Primary(), 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("expected decrement to succeed")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestTryDecrementColorInsufficient(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	mock.ExpectExec(decrementSQL + ".*color = \\$3").
		WithArgs(4, int64(9), "red").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	ok, err := New(mock).TryDecrement(context.Background(), 9, Variant{Color: "red"}, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected insufficient stock to report false")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestReleaseMissingVariant(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE product_variants SET quantity = quantity + $1")).
		WithArgs(1, int64(3), "blue").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = New(mock).Release(context.Background(), 3, Variant{Color: "blue"}, 1)
	if !errors.Is(err, ErrVariantNotFound) {
		t.Fatalf("err = %v, want ErrVariantNotFound", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestReleasePrimary(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE product_variants SET quantity = quantity + $1")).
		WithArgs(5, int64(3)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := New(mock).Release(context.Background(), 3, Primary(), 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestVariantString(t *testing.T) {
	if Primary().String() != "primary" || (Variant{Color: "red"}).String() != "red" {
		t.Error("unexpected variant rendering")
	}
}
