package repo

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	domain "github.com/quickdash/order-api/internal/entity"
	"github.com/quickdash/order-api/internal/usecase"
)

// Index names carried by the memberships table; the duplicate-key error is
// classified by which one fired.
const (
	idxCustomerStore = "uq_customer_store"
	idxStoreNumber   = "uq_store_number"
)

type MySQLMembershipRepo struct{ db *sql.DB }

func NewMySQLMembershipRepo(db *sql.DB) *MySQLMembershipRepo { return &MySQLMembershipRepo{db: db} }

func (r *MySQLMembershipRepo) Exists(ctx context.Context, customerID, storeID string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `
SELECT 1 FROM memberships WHERE customer_id=? AND store_id=? LIMIT 1`,
		customerID, storeID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// RegistryContains checks the store-owned registry of issued numbers. This
// is a different table from memberships: the registry is what the store
// uploaded, memberships are what customers have claimed.
func (r *MySQLMembershipRepo) RegistryContains(ctx context.Context, storeID, number string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `
SELECT 1 FROM store_membership_registry WHERE store_id=? AND membership_number=? LIMIT 1`,
		storeID, number).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *MySQLMembershipRepo) Create(ctx context.Context, rec *domain.MembershipRecord) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO memberships (customer_id,store_id,membership_number,created_at)
VALUES (?,?,?,NOW())`,
		rec.CustomerID, rec.StoreID, rec.MembershipNumber)
	if err == nil {
		return nil
	}

	var me *mysql.MySQLError
	if errors.As(err, &me) && me.Number == 1062 {
		// ER_DUP_ENTRY: which uniqueness constraint fired decides whether
		// this is a benign same-customer race or a number claimed by
		// someone else.
		switch {
		case strings.Contains(me.Message, idxCustomerStore):
			return usecase.ErrMembershipAlreadyVerified
		case strings.Contains(me.Message, idxStoreNumber):
			return usecase.ErrMembershipClaimed
		}
	}
	return err
}

var _ usecase.MembershipRepo = (*MySQLMembershipRepo)(nil)
