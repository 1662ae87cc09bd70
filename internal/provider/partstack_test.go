package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/LibrePCB/librepcb-api-server/internal/model"
	"github.com/LibrePCB/librepcb-api-server/pkg/partstack"
)

func stockResponse(body string) *partstack.Response {
	return &partstack.Response{StatusCode: 200, Body: []byte(body)}
}

func TestPartstackProvider_Found(t *testing.T) {
	client := new(mockPartstackClient)
	cache := new(mockCache)

	client.On("FindStocks", mock.Anything, []partstack.Lookup{{Index: 0, MPN: "ATMEGA328P-AU"}}).
		Return(stockResponse(`{"data":{"q0":{
			"products":[
				{"basic":{"manufacturer":"Microchip Technology Inc.","mfgpartno":"ATMEGA328P-AU","status":"active"},
				 "url":"https://partstack.com/p/1","imageUrl":"https://img/1.png","datasheetUrl":"https://ds/1.pdf"}
			],
			"summary":{"inStockInventory":120000,"medianPrice":2.5,"suppliersInStock":12}
		}}}`), nil)

	avail := 5
	want := model.PartResult{
		MPN:          "ATMEGA328P-AU",
		Manufacturer: "Microchip",
		Results:      1,
		Status:       model.StatusActive,
		Availability: &avail,
		Prices:       []model.Price{{Quantity: 1, Price: 2.5}},
		PricingURL:   "https://partstack.com/p/1",
		PictureURL:   "https://img/1.png",
		Resources:    []model.Resource{{Name: "Datasheet", MediaType: "application/pdf", URL: "https://ds/1.pdf"}},
	}
	cache.On("SetCachedPart", mock.Anything, PartstackName, want).Return(nil)

	b := NewBatch(queries("ATMEGA328P-AU", "Microchip"))
	status := model.ProviderStatus{}
	hits, err := NewPartstackProvider(client, cache).Fetch(context.Background(), b, status)

	require.NoError(t, err)
	assert.Equal(t, 0, hits)
	assert.Equal(t, want, b.Results()[0])
	assert.Empty(t, status)
	client.AssertExpectations(t)
	cache.AssertExpectations(t)
}

func TestPartstackProvider_NotFoundIsCached(t *testing.T) {
	client := new(mockPartstackClient)
	cache := new(mockCache)

	client.On("FindStocks", mock.Anything, mock.Anything).
		Return(stockResponse(`{"data":{"q0":{"products":[],"summary":{}}}}`), nil)
	notFound := model.PartResult{MPN: "NOPE", Manufacturer: "Acme", Results: 0}
	cache.On("SetCachedPart", mock.Anything, PartstackName, notFound).Return(nil)

	b := NewBatch(queries("NOPE", "Acme"))
	_, err := NewPartstackProvider(client, cache).Fetch(context.Background(), b, model.ProviderStatus{})

	require.NoError(t, err)
	assert.True(t, b.Resolved(0))
	assert.Equal(t, notFound, b.Results()[0])
	cache.AssertExpectations(t)
}

func TestPartstackProvider_QueriesOnlyUnresolved(t *testing.T) {
	client := new(mockPartstackClient)
	cache := new(mockCache)

	client.On("FindStocks", mock.Anything, []partstack.Lookup{{Index: 1, MPN: "B"}, {Index: 3, MPN: "D"}}).
		Return(stockResponse(`{"data":{
			"q1":{"products":[{"basic":{"manufacturer":"Beta","mfgpartno":"B","status":"NRFND"}}]},
			"q3":null
		}}`), nil)
	cache.On("SetCachedPart", mock.Anything, PartstackName, mock.Anything).Return(nil).Twice()

	b := NewBatch(queries("A", "Acme", "B", "Beta", "C", "Gamma", "D", "Delta"))
	b.Resolve(0, model.PartResult{Results: 1})
	b.Resolve(2, model.PartResult{Results: 1})

	_, err := NewPartstackProvider(client, cache).Fetch(context.Background(), b, model.ProviderStatus{})
	require.NoError(t, err)

	results := b.Results()
	assert.Equal(t, model.PartResult{MPN: "B", Manufacturer: "Beta", Results: 1, Status: model.StatusNRND}, results[1])
	assert.Equal(t, model.NotFound(model.PartQuery{MPN: "D", Manufacturer: "Delta"}), results[3])
	client.AssertExpectations(t)
	cache.AssertExpectations(t)
}

func TestPartstackProvider_QuotaExhausted(t *testing.T) {
	client := new(mockPartstackClient)
	cache := new(mockCache)

	client.On("FindStocks", mock.Anything, mock.Anything).
		Return(stockResponse(`{"data":null,"message":"Quota exceeded","nextAccessTime":"2026-10-17T00:00:00Z"}`), nil)

	b := NewBatch(queries("A", "Acme", "B", "Beta"))
	status := model.ProviderStatus{}
	_, err := NewPartstackProvider(client, cache).Fetch(context.Background(), b, status)

	require.NoError(t, err)
	assert.Equal(t, "2026-10-17T00:00:00Z", status[model.StatusNextAccessTime])
	assert.Equal(t, []int{0, 1}, b.Unresolved())
	cache.AssertNotCalled(t, "SetCachedPart", mock.Anything, mock.Anything, mock.Anything)
}

func TestPartstackProvider_NextAccessTimeIgnoredWithData(t *testing.T) {
	client := new(mockPartstackClient)
	cache := new(mockCache)

	client.On("FindStocks", mock.Anything, mock.Anything).
		Return(stockResponse(`{"data":{"q0":{"products":[]}},"nextAccessTime":"2026-10-17T00:00:00Z"}`), nil)
	cache.On("SetCachedPart", mock.Anything, PartstackName, mock.Anything).Return(nil)

	status := model.ProviderStatus{}
	_, err := NewPartstackProvider(client, cache).Fetch(context.Background(), NewBatch(queries("A", "Acme")), status)

	require.NoError(t, err)
	assert.Empty(t, status)
	cache.AssertExpectations(t)
}

func TestPartstackProvider_TransportFailure(t *testing.T) {
	client := new(mockPartstackClient)
	cache := new(mockCache)

	client.On("FindStocks", mock.Anything, mock.Anything).
		Return(nil, errors.New("partstack: send request: i/o timeout"))

	b := NewBatch(queries("A", "Acme", "B", "Beta"))
	_, err := NewPartstackProvider(client, cache).Fetch(context.Background(), b, model.ProviderStatus{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "partstack query")
	assert.Equal(t, []int{0, 1}, b.Unresolved())
	cache.AssertNotCalled(t, "SetCachedPart", mock.Anything, mock.Anything, mock.Anything)
}

func TestPartstackProvider_ErrorsWithPartialData(t *testing.T) {
	client := new(mockPartstackClient)
	cache := new(mockCache)

	client.On("FindStocks", mock.Anything, mock.Anything).
		Return(stockResponse(`{
			"errors":[{"message":"q1 failed"},"plain error"],
			"data":{"q0":{"products":[{"basic":{"manufacturer":"Acme","mfgpartno":"A"}}]}}
		}`), nil)
	cache.On("SetCachedPart", mock.Anything, PartstackName, mock.Anything).Return(nil).Twice()

	b := NewBatch(queries("A", "Acme", "B", "Beta"))
	_, err := NewPartstackProvider(client, cache).Fetch(context.Background(), b, model.ProviderStatus{})

	require.NoError(t, err)
	results := b.Results()
	assert.True(t, results[0].Found())
	assert.False(t, results[1].Found())
	cache.AssertExpectations(t)
}

func TestPartstackProvider_PicksBestCandidate(t *testing.T) {
	client := new(mockPartstackClient)
	cache := new(mockCache)

	client.On("FindStocks", mock.Anything, mock.Anything).
		Return(stockResponse(`{"data":{"q0":{"products":[
			{"basic":{"manufacturer":"Other","mfgpartno":"LM358","status":"active"},"url":"wrong-mfr"},
			{"basic":{"manufacturer":"Texas Instruments","mfgpartno":"LM358","status":"obsolete"},"url":"obsolete"},
			{"basic":{"manufacturer":"TI Japan","mfgpartno":"LM 358","status":"active"},"url":"active"},
			{"basic":{"manufacturer":"TI Japan","mfgpartno":"LM358","status":"active"},"url":"active-exact"}
		]}}}`), nil)
	cache.On("SetCachedPart", mock.Anything, PartstackName, mock.Anything).Return(nil)

	b := NewBatch(queries("LM358", "Texas Instruments"))
	_, err := NewPartstackProvider(client, cache).Fetch(context.Background(), b, model.ProviderStatus{})

	require.NoError(t, err)
	got := b.Results()[0]
	assert.Equal(t, "active-exact", got.PricingURL)
	assert.Equal(t, model.StatusActive, got.Status)
}

func TestPartstackProvider_MistypedFieldsAreAbsent(t *testing.T) {
	client := new(mockPartstackClient)
	cache := new(mockCache)

	client.On("FindStocks", mock.Anything, mock.Anything).
		Return(stockResponse(`{"data":{"q0":{
			"products":[{"basic":{"manufacturer":"Acme","mfgpartno":"A","status":"preview"},"url":42,"imageUrl":null}],
			"summary":{"inStockInventory":"lots","medianPrice":"1.00","suppliersInStock":3.5}
		}}}`), nil)
	cache.On("SetCachedPart", mock.Anything, PartstackName, mock.Anything).Return(nil)

	b := NewBatch(queries("A", "Acme"))
	_, err := NewPartstackProvider(client, cache).Fetch(context.Background(), b, model.ProviderStatus{})

	require.NoError(t, err)
	assert.Equal(t, model.PartResult{MPN: "A", Manufacturer: "Acme", Results: 1}, b.Results()[0])
}

func TestPartstackProvider_CacheWriteFailureIsLogged(t *testing.T) {
	client := new(mockPartstackClient)
	cache := new(mockCache)

	client.On("FindStocks", mock.Anything, mock.Anything).
		Return(stockResponse(`{"data":{"q0":{"products":[]},"q1":{"products":[]}}}`), nil)
	cache.On("SetCachedPart", mock.Anything, PartstackName, mock.Anything).Return(errors.New("locked")).Twice()

	b := NewBatch(queries("A", "Acme", "B", "Beta"))
	_, err := NewPartstackProvider(client, cache).Fetch(context.Background(), b, model.ProviderStatus{})

	require.NoError(t, err)
	assert.Empty(t, b.Unresolved())
	cache.AssertExpectations(t)
}

func TestPartstackProvider_NothingPending(t *testing.T) {
	client := new(mockPartstackClient)
	b := NewBatch(queries("A", "Acme"))
	b.Resolve(0, model.PartResult{Results: 1})

	_, err := NewPartstackProvider(client, new(mockCache)).Fetch(context.Background(), b, model.ProviderStatus{})
	require.NoError(t, err)
	client.AssertNotCalled(t, "FindStocks", mock.Anything, mock.Anything)
}
