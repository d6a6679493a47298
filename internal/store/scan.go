package store

import (
	"database/sql"
	"fmt"

	"github.com/vbonduro/interop/internal/domain"
)

type rowScanner interface {
	Scan(dest ...any) error
}

// enumColumn stores optional vocabulary values by canonical name, NULL when absent.
func enumColumn[T fmt.Stringer](v *T) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: (*v).String(), Valid: true}
}

func enumValue[T any](col sql.NullString, field string, parse func(string) (T, bool)) (*T, error) {
	if !col.Valid {
		return nil, nil
	}
	v, ok := parse(col.String)
	if !ok {
		return nil, fmt.Errorf("stored %s %q is not a known value", field, col.String)
	}
	return &v, nil
}

func scanTarget(row rowScanner) (*domain.Target, error) {
	var (
		t                                  domain.Target
		targetType                         string
		locationID                         sql.NullInt64
		latitude, longitude                sql.NullFloat64
		orientation, shape                 sql.NullString
		backgroundColor, alphanumericColor sql.NullString
	)

	if err := row.Scan(&t.ID, &t.UserID, &targetType, &locationID, &latitude, &longitude,
		&orientation, &shape, &backgroundColor, &t.Alphanumeric,
		&alphanumericColor, &t.Description, &t.Thumbnail, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}

	tt, ok := domain.ParseTargetType(targetType)
	if !ok {
		return nil, fmt.Errorf("stored target type %q is not a known value", targetType)
	}
	t.Type = tt

	if locationID.Valid {
		t.Location = &domain.Location{
			ID:        locationID.Int64,
			Latitude:  latitude.Float64,
			Longitude: longitude.Float64,
		}
	}

	var err error
	if t.Orientation, err = enumValue(orientation, "orientation", domain.ParseOrientation); err != nil {
		return nil, err
	}
	if t.Shape, err = enumValue(shape, "shape", domain.ParseShape); err != nil {
		return nil, err
	}
	if t.BackgroundColor, err = enumValue(backgroundColor, "background color", domain.ParseColor); err != nil {
		return nil, err
	}
	if t.AlphanumericColor, err = enumValue(alphanumericColor, "alphanumeric color", domain.ParseColor); err != nil {
		return nil, err
	}

	return &t, nil
}
