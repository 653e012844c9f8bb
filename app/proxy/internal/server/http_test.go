package server

import (
	"encoding/json"
	nethttp "net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/transport/http"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ctrevinoi1/forensic-locator/app/forensic/pkg/imagery"
	"github.com/ctrevinoi1/forensic-locator/app/forensic/pkg/model"
	"github.com/ctrevinoi1/forensic-locator/app/proxy/internal/biz"
	"github.com/ctrevinoi1/forensic-locator/app/proxy/internal/conf"
	"github.com/ctrevinoi1/forensic-locator/app/proxy/internal/data"
	"github.com/ctrevinoi1/forensic-locator/app/proxy/internal/service"
)

const productID = "a1b2c3d4"

// fakeCopernicus 模拟令牌端点与 OData 目录
type fakeCopernicus struct {
	*httptest.Server
	tokenCalls   atomic.Int32
	catalogCalls atomic.Int32
	products     string

	mu        sync.Mutex
	lastQuery url.Values
	lastAuth  string
}

func (f *fakeCopernicus) last() (url.Values, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastQuery, f.lastAuth
}

func newFakeCopernicus(t *testing.T) *fakeCopernicus {
	f := &fakeCopernicus{
		products: `{"value":[{"Id":"` + productID + `","Name":"S2A_MSIL2A_20241015T083421","ContentDate":{"Start":"2024-10-15T08:34:21Z"},"Attributes":[{"Name":"cloudCover","Value":5.2},{"Name":"platformShortName","Value":"SENTINEL-2"}]}]}`,
	}
	f.Server = httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		switch {
		case r.URL.Path == "/token":
			f.tokenCalls.Add(1)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"access_token":"tok-1","token_type":"Bearer","expires_in":600}`))
		case r.URL.Path == "/odata/v1/Products":
			f.catalogCalls.Add(1)
			f.mu.Lock()
			f.lastQuery = r.URL.Query()
			f.lastAuth = r.Header.Get("Authorization")
			f.mu.Unlock()
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(f.products))
		case r.URL.Path == "/odata/v1/Products("+productID+")":
			f.catalogCalls.Add(1)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"Id":"` + productID + `","Assets":[{"Type":"QUICKLOOK","DownloadLink":"` + f.URL + `/quicklook/` + productID + `"}]}`))
		case r.URL.Path == "/odata/v1/Products(noquicklook)":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"Id":"noquicklook","Assets":[]}`))
		case r.URL.Path == "/quicklook/"+productID:
			w.Header().Set("Content-Type", "image/jpeg")
			_, _ = w.Write([]byte{0xff, 0xd8, 0xff})
		default:
			nethttp.NotFound(w, r)
		}
	}))
	t.Cleanup(f.Close)
	return f
}

func newTestServer(t *testing.T, baseURL, clientID string) *http.Server {
	t.Helper()
	up := &conf.Upstream{
		ClientId:     clientID,
		ClientSecret: "secret",
		TokenUrl:     baseURL + "/token",
		CatalogUrl:   baseURL + "/odata/v1",
		Collection:   "SENTINEL-2",
		Timeout:      "5s",
		TokenSkew:    "60s",
	}
	logger := log.DefaultLogger
	d, cleanup, err := data.NewData(up, &conf.Cache{}, logger)
	require.NoError(t, err)
	t.Cleanup(cleanup)

	uc := biz.NewSatelliteUseCase(data.NewCatalogRepo(d, logger), logger)
	sc := &conf.Server{Http: &conf.HTTP{}, Cors: &conf.Cors{AllowedOrigins: []string{"http://localhost:5173"}}}
	return NewHTTPServer(sc, service.NewSatelliteService(uc, logger), logger)
}

func do(srv *http.Server, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) ErrorEnvelope {
	t.Helper()
	var env ErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

const searchTarget = "/api/satellite/search?lat=31.5&lon=34.45&startDate=2024-10-01&endDate=2024-10-23&limit=3"

func TestSearch_EndToEnd(t *testing.T) {
	up := newFakeCopernicus(t)
	srv := newTestServer(t, up.URL, "client")

	rec := do(srv, nethttp.MethodGet, searchTarget)
	require.Equal(t, nethttp.StatusOK, rec.Code, rec.Body.String())

	var resp imagery.SearchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Available)
	assert.Equal(t, 1, resp.Count)
	require.Len(t, resp.Imagery, 1)
	img := resp.Imagery[0]
	assert.Equal(t, productID, img.ID)
	assert.Equal(t, "S2A_MSIL2A_20241015T083421", img.Name)
	assert.True(t, img.Date.Equal(time.Date(2024, 10, 15, 8, 34, 21, 0, time.UTC)))
	assert.InDelta(t, 5.2, img.CloudCover, 1e-9)
	assert.Equal(t, "/api/satellite/thumbnail/"+productID, img.Thumbnail)
	assert.Equal(t, model.Coordinate{Lat: 31.5, Lon: 34.45}, resp.Location)
	assert.Equal(t, "2024-10-23", resp.SearchDate)

	query, auth := up.last()
	filter := query.Get("$filter")
	assert.Contains(t, filter, "Collection/Name eq 'SENTINEL-2'")
	assert.Contains(t, filter, "POINT(34.45 31.5)")
	assert.Contains(t, filter, "ContentDate/Start gt 2024-10-01T00:00:00.000Z")
	assert.Contains(t, filter, "ContentDate/Start lt 2024-10-23T23:59:59.999Z")
	assert.Equal(t, "ContentDate/Start desc", query.Get("$orderby"))
	assert.Equal(t, "3", query.Get("$top"))
	assert.Equal(t, "Attributes", query.Get("$expand"))
	assert.Equal(t, "Bearer tok-1", auth)
}

func TestSearch_ReusesToken(t *testing.T) {
	up := newFakeCopernicus(t)
	srv := newTestServer(t, up.URL, "client")

	for i := 0; i < 3; i++ {
		rec := do(srv, nethttp.MethodGet, searchTarget)
		require.Equal(t, nethttp.StatusOK, rec.Code)
	}
	assert.Equal(t, int32(1), up.tokenCalls.Load())
	assert.Equal(t, int32(3), up.catalogCalls.Load())
}

func TestSearch_IdenticalQueriesReturnIdenticalImagery(t *testing.T) {
	up := newFakeCopernicus(t)
	up.products = `{"value":[` +
		`{"Id":"` + productID + `","Name":"S2A_MSIL2A_20241015T083421","ContentDate":{"Start":"2024-10-15T08:34:21Z"},"Attributes":[{"Name":"cloudCover","Value":5.2}]},` +
		`{"Id":"e5f6a7b8","Name":"S2B_MSIL2A_20241010T083109","ContentDate":{"Start":"2024-10-10T08:31:09Z"},"Attributes":[{"Name":"cloudCover","Value":41.7}]}]}`
	srv := newTestServer(t, up.URL, "client")

	search := func() imagery.SearchResponse {
		rec := do(srv, nethttp.MethodGet, searchTarget)
		require.Equal(t, nethttp.StatusOK, rec.Code, rec.Body.String())
		var resp imagery.SearchResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		return resp
	}

	first := search()
	second := search()
	require.Len(t, first.Imagery, 2)
	assert.Equal(t, 2, first.Count)
	assert.Equal(t, "e5f6a7b8", first.Imagery[1].ID)
	if diff := cmp.Diff(first.Imagery, second.Imagery); diff != "" {
		t.Errorf("imagery differs between identical searches (-first +second):\n%s", diff)
	}
	assert.Equal(t, first.Count, second.Count)
	assert.Equal(t, first.SearchDate, second.SearchDate)
}

func TestSearch_NoMatches(t *testing.T) {
	up := newFakeCopernicus(t)
	up.products = `{"value":[]}`
	srv := newTestServer(t, up.URL, "client")

	rec := do(srv, nethttp.MethodGet, searchTarget)
	require.Equal(t, nethttp.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"imagery":[]`)

	var resp imagery.SearchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Available)
	assert.Equal(t, 0, resp.Count)
}

func TestSearch_MissingCoordinates(t *testing.T) {
	up := newFakeCopernicus(t)
	srv := newTestServer(t, up.URL, "client")

	for _, target := range []string{
		"/api/satellite/search?lon=34.45",
		"/api/satellite/search?lat=31.5",
		"/api/satellite/search",
	} {
		rec := do(srv, nethttp.MethodGet, target)
		assert.Equal(t, nethttp.StatusBadRequest, rec.Code, target)
		assert.Equal(t, biz.KindMissingParameters, decodeEnvelope(t, rec).Error, target)
	}
	assert.Zero(t, up.tokenCalls.Load())
	assert.Zero(t, up.catalogCalls.Load())
}

func TestSearch_InvalidParameters(t *testing.T) {
	up := newFakeCopernicus(t)
	srv := newTestServer(t, up.URL, "client")

	rec := do(srv, nethttp.MethodGet, "/api/satellite/search?lat=abc&lon=34.45")
	assert.Equal(t, nethttp.StatusBadRequest, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, biz.KindInvalidParameters, env.Error)
	assert.Equal(t, env.Message, env.Details)
	assert.Zero(t, up.catalogCalls.Load())
}

func TestSearch_MissingCredentials(t *testing.T) {
	up := newFakeCopernicus(t)
	srv := newTestServer(t, up.URL, "")

	rec := do(srv, nethttp.MethodGet, searchTarget)
	assert.Equal(t, nethttp.StatusInternalServerError, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, biz.KindAuthConfiguration, env.Error)
	assert.Contains(t, env.Message, "COPERNICUS_CLIENT_ID")
	assert.NotContains(t, rec.Body.String(), "secret")
	assert.Zero(t, up.tokenCalls.Load())
}

func TestSearch_UnreachableUpstreamHint(t *testing.T) {
	dead := httptest.NewServer(nethttp.NotFoundHandler())
	deadURL := dead.URL
	dead.Close()
	srv := newTestServer(t, deadURL, "client")

	rec := do(srv, nethttp.MethodGet, searchTarget)
	assert.Equal(t, nethttp.StatusInternalServerError, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, biz.KindSearchFailed, env.Error)
	assert.Equal(t, biz.NetworkHint, env.Details)
	assert.NotEqual(t, env.Message, env.Details)
}

func TestThumbnail_Streams(t *testing.T) {
	up := newFakeCopernicus(t)
	srv := newTestServer(t, up.URL, "client")

	rec := do(srv, nethttp.MethodGet, "/api/satellite/thumbnail/"+productID)
	require.Equal(t, nethttp.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	assert.Equal(t, []byte{0xff, 0xd8, 0xff}, rec.Body.Bytes())
}

func TestThumbnail_NoQuicklook(t *testing.T) {
	up := newFakeCopernicus(t)
	srv := newTestServer(t, up.URL, "client")

	rec := do(srv, nethttp.MethodGet, "/api/satellite/thumbnail/noquicklook")
	assert.Equal(t, nethttp.StatusInternalServerError, rec.Code)
	assert.Equal(t, biz.KindThumbnailFailed, decodeEnvelope(t, rec).Error)
}

func TestAuthenticateAndHealth(t *testing.T) {
	up := newFakeCopernicus(t)
	srv := newTestServer(t, up.URL, "client")

	rec := do(srv, nethttp.MethodPost, "/api/satellite/auth")
	require.Equal(t, nethttp.StatusOK, rec.Code)
	assert.JSONEq(t, `{"access_token":"tok-1"}`, rec.Body.String())

	rec = do(srv, nethttp.MethodGet, "/health")
	require.Equal(t, nethttp.StatusOK, rec.Code)
	var health map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health["status"])
}

func TestCORSPreflight(t *testing.T) {
	up := newFakeCopernicus(t)
	srv := newTestServer(t, up.URL, "client")

	req := httptest.NewRequest(nethttp.MethodOptions, "/api/satellite/search", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", nethttp.MethodGet)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(nethttp.MethodOptions, "/api/satellite/search", nil)
	req.Header.Set("Origin", "http://evil.example")
	req.Header.Set("Access-Control-Request-Method", nethttp.MethodGet)
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestEncodeError_PlainError(t *testing.T) {
	rec := httptest.NewRecorder()
	EncodeError(rec, httptest.NewRequest(nethttp.MethodGet, "/", nil), assert.AnError)
	assert.Equal(t, nethttp.StatusInternalServerError, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, "Internal server error", env.Error)
	assert.True(t, strings.HasPrefix(env.Details, "assert.AnError"))
}
