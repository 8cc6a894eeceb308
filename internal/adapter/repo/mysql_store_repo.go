package repo

import (
	"context"
	"database/sql"
	"errors"

	domain "github.com/quickdash/order-api/internal/entity"
	"github.com/quickdash/order-api/internal/usecase"
)

type MySQLStoreRepo struct{ db *sql.DB }

func NewMySQLStoreRepo(db *sql.DB) *MySQLStoreRepo { return &MySQLStoreRepo{db: db} }

func (r *MySQLStoreRepo) Get(ctx context.Context, storeID string) (*domain.StoreInfo, error) {
	var info domain.StoreInfo
	var lat, lng sql.NullFloat64
	err := r.db.QueryRowContext(ctx, `
SELECT id,name,lat,lng,requires_membership FROM stores WHERE id=?`, storeID).
		Scan(&info.ID, &info.Name, &lat, &lng, &info.RequiresMembership)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	// Stores may lack coordinates; pricing falls back to the base rate.
	if lat.Valid && lng.Valid {
		info.Coordinate = &domain.Coordinate{Lat: lat.Float64, Lng: lng.Float64}
	}
	return &info, nil
}

var _ usecase.StoreDirectory = (*MySQLStoreRepo)(nil)
