package data

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ctrevinoi1/forensic-locator/app/proxy/internal/biz"
)

func TestSearchFilter(t *testing.T) {
	q := biz.SearchQuery{
		Lat:   -33.8688,
		Lon:   151.2093,
		Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 1, 31, 23, 59, 59, int(999*time.Millisecond), time.UTC),
		Limit: 5,
	}
	assert.Equal(t,
		"Collection/Name eq 'SENTINEL-2' and OData.CSC.Intersects(area=geography'SRID=4326;POINT(151.2093 -33.8688)') "+
			"and ContentDate/Start gt 2024-01-01T00:00:00.000Z and ContentDate/Start lt 2024-01-31T23:59:59.999Z",
		SearchFilter("SENTINEL-2", q))
}

func TestCloudCover(t *testing.T) {
	var p odataProduct
	raw := `{"Id":"x","Attributes":[{"Name":"productType","Value":"S2MSI2A"},{"Name":"cloudCover","Value":12.75}]}`
	require.NoError(t, json.Unmarshal([]byte(raw), &p))
	assert.InDelta(t, 12.75, p.cloudCover(), 1e-9)

	assert.Zero(t, odataProduct{}.cloudCover())
}
