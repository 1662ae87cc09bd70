package provider

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/LibrePCB/librepcb-api-server/internal/match"
	"github.com/LibrePCB/librepcb-api-server/internal/model"
	"github.com/LibrePCB/librepcb-api-server/pkg/partstack"
)

// Partstack provider metadata advertised by the API.
const (
	PartstackName         = "partstack"
	PartstackDisplayName  = "Partstack"
	PartstackURL          = "https://partstack.com"
	PartstackLogoFilename = "parts-provider-partstack.png"
)

// PartstackProvider resolves entries with one batched Partstack query and
// caches every outcome, including parts that were not found.
type PartstackProvider struct {
	client partstack.Client
	cache  PartCache
}

// NewPartstackProvider creates a PartstackProvider writing results to cache.
func NewPartstackProvider(client partstack.Client, cache PartCache) *PartstackProvider {
	return &PartstackProvider{client: client, cache: cache}
}

// Name implements Provider.
func (p *PartstackProvider) Name() string { return PartstackName }

// Fetch implements Provider. A failed request leaves the batch untouched and
// writes nothing to the cache.
func (p *PartstackProvider) Fetch(ctx context.Context, b *Batch, status model.ProviderStatus) (int, error) {
	pending := b.Unresolved()
	if len(pending) == 0 {
		return 0, nil
	}

	lookups := make([]partstack.Lookup, len(pending))
	for n, i := range pending {
		lookups[n] = partstack.Lookup{Index: i, MPN: b.Query(i).MPN}
	}

	resp, err := p.client.FindStocks(ctx, lookups)
	if err != nil {
		return 0, eris.Wrap(err, "provider: partstack query")
	}

	log := zap.L().With(zap.String("provider", PartstackName))
	root := gjson.ParseBytes(resp.Body)
	data := root.Get("data")
	noData := !data.IsObject() || len(data.Map()) == 0

	root.Get("errors").ForEach(func(_, e gjson.Result) bool {
		log.Warn("provider: graphql error", zap.String("error", graphqlError(e)))
		return true
	})
	if msg := root.Get("message"); noData && msg.Type == gjson.String {
		log.Warn("provider: graphql error", zap.String("error", msg.String()))
	}

	quota := false
	if next := root.Get("nextAccessTime"); noData && next.Exists() && next.Type != gjson.Null {
		log.Warn("provider: quota limit reached", zap.String("next_access_time", next.String()))
		status[model.StatusNextAccessTime] = next.Value()
		quota = true
	}
	if quota {
		// Nothing was looked up, so there is no outcome worth caching.
		return 0, nil
	}

	for n, i := range pending {
		q := b.Query(i)
		result := p.convert(q, data.Get(lookups[n].Alias()))
		b.Resolve(i, result)
		if err := p.cache.SetCachedPart(ctx, PartstackName, result); err != nil {
			log.Warn("provider: cache write failed",
				zap.String("mpn", q.MPN),
				zap.String("manufacturer", q.Manufacturer),
				zap.Error(err),
			)
		}
	}
	return 0, nil
}

// convert turns one aliased stock result into a part result. Missing or
// mistyped fields are treated as absent.
func (p *PartstackProvider) convert(q model.PartQuery, stock gjson.Result) model.PartResult {
	result := model.NotFound(q)

	var products []gjson.Result
	if v := stock.Get("products"); v.IsArray() {
		products = v.Array()
	}
	cands := make([]match.Candidate, len(products))
	for i, prod := range products {
		cands[i] = match.Candidate{
			Manufacturer: stringField(prod, "basic.manufacturer"),
			MPN:          stringField(prod, "basic.mfgpartno"),
			Status:       stringField(prod, "basic.status"),
		}
	}
	best, _, ok := match.Best(cands, q)
	if !ok {
		return result
	}
	product := products[best]
	summary := stock.Get("summary")

	result.Results = 1
	result.PricingURL = stringField(product, "url")
	result.PictureURL = stringField(product, "imageUrl")

	if raw := cands[best].Status; raw != "" {
		status, known := match.LifecycleStatus(raw)
		if !known {
			zap.L().Warn("provider: unknown part lifecycle status",
				zap.String("provider", PartstackName),
				zap.String("status", raw),
			)
		}
		result.Status = status
	}

	result.Availability = Availability(intField(summary, "inStockInventory"), intField(summary, "suppliersInStock"))

	if price := summary.Get("medianPrice"); price.Type == gjson.Number {
		result.Prices = []model.Price{{Quantity: 1, Price: price.Float()}}
	}
	if ds := stringField(product, "datasheetUrl"); ds != "" {
		result.Resources = []model.Resource{{Name: "Datasheet", MediaType: "application/pdf", URL: ds}}
	}
	return result
}

func stringField(r gjson.Result, path string) string {
	if v := r.Get(path); v.Type == gjson.String {
		return v.Str
	}
	return ""
}

// intField returns integral numbers only; fractions and other types are absent.
func intField(r gjson.Result, path string) *int {
	v := r.Get(path)
	if v.Type != gjson.Number || strings.ContainsAny(v.Raw, ".eE") {
		return nil
	}
	n := int(v.Int())
	return &n
}

func graphqlError(e gjson.Result) string {
	if msg := e.Get("message"); msg.Type == gjson.String {
		return msg.Str
	}
	if e.Type == gjson.String {
		return e.Str
	}
	return e.Raw
}
