package db

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/spacesedan/brandpulse/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	brandColumns = []string{"id", "name", "keywords", "platforms", "include_keywords", "exclude_keywords", "language", "country"}
	groupColumns = []string{"id", "brand_id", "name", "keywords", "platforms", "include_keywords", "exclude_keywords",
		"language", "country", "frequency", "status"}
)

func TestBrandRepository_GetBrand(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`FROM brands WHERE id = \$1`).
		WithArgs("acme").
		WillReturnRows(sqlmock.NewRows(brandColumns).
			AddRow("acme", "Acme", []byte(`["acme"]`), []byte(`["youtube","x","myspace"]`), []byte(`[]`), []byte(`["hiring"]`), "en", "US"))
	mock.ExpectQuery(`FROM keyword_groups WHERE brand_id = \$1`).
		WithArgs("acme").
		WillReturnRows(sqlmock.NewRows(groupColumns).
			AddRow("g1", "acme", "Launch", []byte(`["acme rocket"]`), []byte(`["reddit"]`), []byte(`null`), []byte(`[]`),
				"", "", "15m", "paused"))

	brand, err := NewBrandRepository(db).GetBrand(context.Background(), "acme")
	require.NoError(t, err)

	assert.Equal(t, "Acme", brand.Name)
	assert.Equal(t, []string{"acme"}, brand.Keywords)
	assert.Equal(t, []models.Platform{models.PlatformYouTube, models.PlatformTwitter}, brand.Platforms)
	assert.Equal(t, []string{"hiring"}, brand.ExcludeKeywords)
	require.Len(t, brand.Groups, 1)
	g := brand.Groups[0]
	assert.Equal(t, "acme", g.BrandID)
	assert.Equal(t, models.Frequency15m, g.Frequency)
	assert.True(t, g.IsPaused())
	assert.Equal(t, []models.Platform{models.PlatformReddit}, g.Platforms)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBrandRepository_GetBrandNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`FROM brands`).
		WithArgs("nobody").
		WillReturnRows(sqlmock.NewRows(brandColumns))

	_, err = NewBrandRepository(db).GetBrand(context.Background(), "nobody")
	assert.ErrorIs(t, err, models.ErrBrandNotFound)
}

func TestBrandRepository_ListBrands(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`FROM brands ORDER BY id`).
		WillReturnRows(sqlmock.NewRows(brandColumns).
			AddRow("acme", "Acme", []byte(`["acme"]`), []byte(`["youtube"]`), []byte(`[]`), []byte(`[]`), "", "").
			AddRow("globex", "Globex", []byte(`["globex"]`), []byte(`["news"]`), []byte(`[]`), []byte(`[]`), "", ""))
	mock.ExpectQuery(`FROM keyword_groups\s+ORDER BY`).
		WillReturnRows(sqlmock.NewRows(groupColumns).
			AddRow("g2", "globex", "Everything", []byte(`["globex corp"]`), []byte(`["google"]`), []byte(`[]`), []byte(`[]`),
				"", "", "1h", "running"))

	brands, err := NewBrandRepository(db).ListBrands(context.Background())
	require.NoError(t, err)
	require.Len(t, brands, 2)
	assert.Empty(t, brands[0].Groups)
	require.Len(t, brands[1].Groups, 1)
	assert.Equal(t, "g2", brands[1].Groups[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
