package data

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-kratos/kratos/v2/log"

	"github.com/ctrevinoi1/forensic-locator/app/forensic/pkg/model"
	"github.com/ctrevinoi1/forensic-locator/app/proxy/internal/biz"
)

const (
	odataTime       = "2006-01-02T15:04:05.000Z"
	quicklookAsset  = "QUICKLOOK"
	cloudCoverAttr  = "cloudCover"
	maxErrorSnippet = 512
)

type catalogRepo struct {
	data *Data
	log  *log.Helper
}

var _ biz.CatalogRepo = (*catalogRepo)(nil)

// NewCatalogRepo Copernicus Data Space OData 目录
func NewCatalogRepo(data *Data, logger log.Logger) biz.CatalogRepo {
	return &catalogRepo{data: data, log: log.NewHelper(logger)}
}

type odataProducts struct {
	Value []odataProduct `json:"value"`
}

type odataProduct struct {
	Id          string `json:"Id"`
	Name        string `json:"Name"`
	ContentDate struct {
		Start time.Time `json:"Start"`
	} `json:"ContentDate"`
	Attributes []struct {
		Name  string          `json:"Name"`
		Value json.RawMessage `json:"Value"`
	} `json:"Attributes"`
	Assets []struct {
		Type         string `json:"Type"`
		DownloadLink string `json:"DownloadLink"`
	} `json:"Assets"`
}

func (p odataProduct) cloudCover() float64 {
	for _, a := range p.Attributes {
		if a.Name != cloudCoverAttr {
			continue
		}
		var v float64
		if err := json.Unmarshal(a.Value, &v); err == nil {
			return v
		}
	}
	return 0
}

func (r *catalogRepo) AccessToken(ctx context.Context) (string, error) {
	tok, err := r.data.tokens.Token(ctx)
	if err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}

// SearchFilter 构造 OData 的空间与时间过滤条件
func SearchFilter(collection string, q biz.SearchQuery) string {
	return fmt.Sprintf(
		"Collection/Name eq '%s' and OData.CSC.Intersects(area=geography'SRID=4326;POINT(%s %s)') and ContentDate/Start gt %s and ContentDate/Start lt %s",
		collection,
		strconv.FormatFloat(q.Lon, 'f', -1, 64),
		strconv.FormatFloat(q.Lat, 'f', -1, 64),
		q.Start.UTC().Format(odataTime),
		q.End.UTC().Format(odataTime),
	)
}

func (r *catalogRepo) SearchProducts(ctx context.Context, q biz.SearchQuery) ([]biz.Product, error) {
	params := url.Values{}
	params.Set("$filter", SearchFilter(r.data.upstream.Collection, q))
	params.Set("$orderby", "ContentDate/Start desc")
	params.Set("$top", strconv.Itoa(q.Limit))
	params.Set("$expand", "Attributes")

	var resp odataProducts
	if err := r.getJSON(ctx, r.catalogURL("/Products")+"?"+params.Encode(), &resp); err != nil {
		return nil, err
	}

	products := make([]biz.Product, 0, len(resp.Value))
	for _, p := range resp.Value {
		products = append(products, biz.Product{
			ID:         p.Id,
			Name:       p.Name,
			Start:      p.ContentDate.Start,
			CloudCover: p.cloudCover(),
		})
	}
	return products, nil
}

func (r *catalogRepo) OpenQuicklook(ctx context.Context, productID string) (io.ReadCloser, string, error) {
	var product odataProduct
	u := r.catalogURL("/Products("+url.PathEscape(productID)+")") + "?$expand=Assets"
	if err := r.getJSON(ctx, u, &product); err != nil {
		return nil, "", err
	}

	link := ""
	for _, a := range product.Assets {
		if strings.EqualFold(a.Type, quicklookAsset) && a.DownloadLink != "" {
			link = a.DownloadLink
			break
		}
	}
	if link == "" {
		return nil, "", fmt.Errorf("%w: product %s has no quicklook asset", model.ErrUpstreamRequest, productID)
	}

	res, err := r.do(ctx, link)
	if err != nil {
		return nil, "", err
	}
	return res.Body, res.Header.Get("Content-Type"), nil
}

func (r *catalogRepo) catalogURL(path string) string {
	return strings.TrimRight(r.data.upstream.CatalogUrl, "/") + path
}

func (r *catalogRepo) getJSON(ctx context.Context, u string, out any) error {
	res, err := r.do(ctx, u)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode catalog response: %w", model.ErrUpstreamRequest, err)
	}
	return nil
}

// do 携带令牌发起 GET，非 200 时读取部分响应体作为错误信息
func (r *catalogRepo) do(ctx context.Context, u string) (*http.Response, error) {
	tok, err := r.data.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrUpstreamRequest, err)
	}
	tok.SetAuthHeader(req)

	res, err := r.data.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrUpstreamRequest, err)
	}
	if res.StatusCode != http.StatusOK {
		defer res.Body.Close()
		snippet, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorSnippet))
		return nil, fmt.Errorf("%w: catalog returned status %d: %s", model.ErrUpstreamRequest, res.StatusCode, strings.TrimSpace(string(snippet)))
	}
	return res, nil
}
