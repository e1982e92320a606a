package billing

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/brianvoe/gofakeit/v6"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"

	"github.com/verdantdigital/expressbuild/pkg/cache"
	"github.com/verdantdigital/expressbuild/pkg/fulfillment"
	"github.com/verdantdigital/expressbuild/pkg/metrics"
	"github.com/verdantdigital/expressbuild/pkg/models"
)

type fakeGateway struct {
	mu        sync.Mutex
	created   []*stripe.PaymentIntentParams
	createErr error
	intent    *stripe.PaymentIntent
	getErr    error
	gets      []string
}

func (g *fakeGateway) CreatePaymentIntent(ctx context.Context, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.created = append(g.created, params)
	if g.createErr != nil {
		return nil, g.createErr
	}
	return &stripe.PaymentIntent{
		ID:           "pi_test_123",
		ClientSecret: "pi_test_123_secret_abc",
		Amount:       *params.Amount,
		Currency:     stripe.Currency(*params.Currency),
		Status:       stripe.PaymentIntentStatusRequiresPaymentMethod,
	}, nil
}

func (g *fakeGateway) GetPaymentIntent(ctx context.Context, id string) (*stripe.PaymentIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.gets = append(g.gets, id)
	if g.getErr != nil {
		return nil, g.getErr
	}
	return g.intent, nil
}

func (g *fakeGateway) createCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.created)
}

type fakePendingLedger struct {
	records []fulfillment.Record
	err     error
}

func (l *fakePendingLedger) CreatePending(ctx context.Context, rec fulfillment.Record) error {
	l.records = append(l.records, rec)
	return l.err
}

func smithPlumbing() *models.BusinessInfo {
	return &models.BusinessInfo{
		BusinessName: "Smith Plumbing",
		ContactName:  "Dave Smith",
		Email:        "dave@smithplumbing.com.au",
		Phone:        "0412 345 678",
		Trade:        "Plumber",
		Address:      "12 Example St, Newtown NSW 2042",
	}
}

func fakeBusinessInfo() *models.BusinessInfo {
	return &models.BusinessInfo{
		BusinessName: gofakeit.Company(),
		ContactName:  gofakeit.Name(),
		Email:        gofakeit.Email(),
		Phone:        gofakeit.Phone(),
		Trade:        gofakeit.JobTitle(),
		Address:      gofakeit.Street(),
	}
}

func amount(v int64) *int64 { return &v }

func TestIssuer_Create_Success(t *testing.T) {
	gw := &fakeGateway{}
	issuer := NewIssuer(gw, nil)

	resp, err := issuer.Create(context.Background(), models.CreatePaymentIntentRequest{
		Amount:         amount(29900),
		BusinessInfo:   smithPlumbing(),
		WantsGoogleAds: false,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.ClientSecret)
	assert.Equal(t, "pi_test_123", resp.PaymentIntentID)

	require.Len(t, gw.created, 1)
	params := gw.created[0]
	assert.Equal(t, int64(29900), *params.Amount)
	assert.Equal(t, "aud", *params.Currency)
	assert.True(t, *params.AutomaticPaymentMethods.Enabled)
	assert.Equal(t, "dave@smithplumbing.com.au", *params.ReceiptEmail)
	assert.Equal(t, "Verdant Digital - Express Build for Smith Plumbing", *params.Description)

	assert.Equal(t, "Smith Plumbing", params.Metadata["businessName"])
	assert.Equal(t, "Dave Smith", params.Metadata["contactName"])
	assert.Equal(t, "0412 345 678", params.Metadata["phone"])
	assert.Equal(t, "+61412345678", params.Metadata["phoneE164"])
	assert.Equal(t, "Plumber", params.Metadata["trade"])
	assert.Equal(t, "no", params.Metadata["wantsGoogleAds"])
	assert.Equal(t, "99", params.Metadata["monthlyPlan"])
	assert.NotContains(t, params.Metadata, "website")
	assert.Nil(t, params.IdempotencyKey)
}

func TestIssuer_Create_WithGoogleAds(t *testing.T) {
	gw := &fakeGateway{}
	issuer := NewIssuer(gw, nil)

	info := smithPlumbing()
	info.Website = "https://smithplumbing.com.au"

	_, err := issuer.Create(context.Background(), models.CreatePaymentIntentRequest{
		Amount:         amount(29900),
		BusinessInfo:   info,
		WantsGoogleAds: true,
	})
	require.NoError(t, err)

	params := gw.created[0]
	assert.Equal(t, int64(29900), *params.Amount, "add-on never changes the upfront amount")
	assert.Equal(t, "yes", params.Metadata["wantsGoogleAds"])
	assert.Equal(t, "499", params.Metadata["monthlyPlan"])
	assert.Equal(t, "https://smithplumbing.com.au", params.Metadata["website"])
}

func TestIssuer_Create_Rejections(t *testing.T) {
	missingTrade := smithPlumbing()
	missingTrade.Trade = ""

	tests := []struct {
		name    string
		req     models.CreatePaymentIntentRequest
		wantErr error
	}{
		{
			name:    "wrong amount",
			req:     models.CreatePaymentIntentRequest{Amount: amount(1000), BusinessInfo: smithPlumbing()},
			wantErr: ErrInvalidAmount,
		},
		{
			name:    "wrong amount without business info",
			req:     models.CreatePaymentIntentRequest{Amount: amount(1)},
			wantErr: ErrInvalidAmount,
		},
		{
			name:    "zero amount",
			req:     models.CreatePaymentIntentRequest{Amount: amount(0), BusinessInfo: smithPlumbing()},
			wantErr: ErrInvalidAmount,
		},
		{
			name:    "missing amount",
			req:     models.CreatePaymentIntentRequest{BusinessInfo: smithPlumbing()},
			wantErr: ErrInvalidRequest,
		},
		{
			name:    "missing business info",
			req:     models.CreatePaymentIntentRequest{Amount: amount(29900)},
			wantErr: ErrInvalidRequest,
		},
		{
			name:    "missing required business field",
			req:     models.CreatePaymentIntentRequest{Amount: amount(29900), BusinessInfo: missingTrade},
			wantErr: ErrInvalidRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &fakeGateway{}
			issuer := NewIssuer(gw, nil)

			resp, err := issuer.Create(context.Background(), tt.req)
			assert.Nil(t, resp)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Zero(t, gw.createCalls(), "processor must not be called")
		})
	}
}

func TestIssuer_Create_ProcessorError(t *testing.T) {
	gw := &fakeGateway{createErr: errors.New("api_connection_error")}
	issuer := NewIssuer(gw, nil)

	_, err := issuer.Create(context.Background(), models.CreatePaymentIntentRequest{
		Amount:       amount(29900),
		BusinessInfo: smithPlumbing(),
	})

	var procErr *ProcessorError
	require.ErrorAs(t, err, &procErr)
	assert.Contains(t, procErr.Error(), "api_connection_error")
}

func TestIssuer_Create_IdempotencyKey(t *testing.T) {
	mr := miniredis.RunT(t)
	client := &cache.Client{Redis: redis.NewClient(&redis.Options{Addr: mr.Addr()})}
	store := cache.NewPaymentStore(client)

	gw := &fakeGateway{intent: &stripe.PaymentIntent{
		ID:           "pi_test_123",
		ClientSecret: "pi_test_123_secret_abc",
		Status:       stripe.PaymentIntentStatusRequiresPaymentMethod,
	}}
	issuer := NewIssuer(gw, nil)
	issuer.SetIntentStore(store)

	req := models.CreatePaymentIntentRequest{
		Amount:         amount(29900),
		BusinessInfo:   smithPlumbing(),
		IdempotencyKey: "attempt-1",
	}

	first, err := issuer.Create(context.Background(), req)
	require.NoError(t, err)
	second, err := issuer.Create(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, gw.created, 1)
	require.NotNil(t, gw.created[0].IdempotencyKey)
	assert.Equal(t, "attempt-1", *gw.created[0].IdempotencyKey)
	assert.Equal(t, []string{"pi_test_123"}, gw.gets)
	assert.Equal(t, first, second)

	id, found, err := store.LookupIntent(context.Background(), "attempt-1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "pi_test_123", id)
}

func TestIssuer_Create_KnownKeyReturnsEarlierIntent(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryPaymentStore(10)
	require.NoError(t, store.RememberIntent(ctx, "key-1", "pi_earlier"))

	gw := &fakeGateway{intent: &stripe.PaymentIntent{
		ID:           "pi_earlier",
		ClientSecret: "pi_earlier_secret_x",
		Status:       stripe.PaymentIntentStatusRequiresPaymentMethod,
	}}
	ledger := &fakePendingLedger{}
	issuer := NewIssuer(gw, nil)
	issuer.SetIntentStore(store)
	issuer.SetLedger(ledger)

	resp, err := issuer.Create(ctx, models.CreatePaymentIntentRequest{
		Amount:         amount(29900),
		BusinessInfo:   smithPlumbing(),
		IdempotencyKey: "key-1",
	})
	require.NoError(t, err)

	assert.Equal(t, 0, gw.createCalls())
	assert.Equal(t, "pi_earlier", resp.PaymentIntentID)
	assert.Equal(t, "pi_earlier_secret_x", resp.ClientSecret)
	assert.Empty(t, ledger.records)

	id, _, err := store.LookupIntent(ctx, "key-1")
	require.NoError(t, err)
	assert.Equal(t, "pi_earlier", id)
}

func TestIssuer_Create_KnownKeyFallsBackToCreate(t *testing.T) {
	tests := []struct {
		name string
		gw   *fakeGateway
	}{
		{
			name: "earlier intent canceled",
			gw: &fakeGateway{intent: &stripe.PaymentIntent{
				ID:     "pi_earlier",
				Status: stripe.PaymentIntentStatusCanceled,
			}},
		},
		{
			name: "retrieval fails",
			gw:   &fakeGateway{getErr: errors.New("stripe unavailable")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := cache.NewMemoryPaymentStore(10)
			require.NoError(t, store.RememberIntent(ctx, "key-1", "pi_earlier"))

			issuer := NewIssuer(tt.gw, nil)
			issuer.SetIntentStore(store)

			resp, err := issuer.Create(ctx, models.CreatePaymentIntentRequest{
				Amount:         amount(29900),
				BusinessInfo:   smithPlumbing(),
				IdempotencyKey: "key-1",
			})
			require.NoError(t, err)

			assert.Equal(t, 1, tt.gw.createCalls())
			assert.Equal(t, "pi_test_123", resp.PaymentIntentID)
		})
	}
}

func TestIssuer_Create_RecordsPendingFulfillment(t *testing.T) {
	ledger := &fakePendingLedger{}
	issuer := NewIssuer(&fakeGateway{}, nil)
	issuer.SetLedger(ledger)

	_, err := issuer.Create(context.Background(), models.CreatePaymentIntentRequest{
		Amount:         amount(29900),
		BusinessInfo:   smithPlumbing(),
		WantsGoogleAds: true,
	})
	require.NoError(t, err)

	require.Len(t, ledger.records, 1)
	assert.Equal(t, fulfillment.Record{
		PaymentIntentID: "pi_test_123",
		Amount:          29900,
		Currency:        "aud",
		BusinessName:    "Smith Plumbing",
		Email:           "dave@smithplumbing.com.au",
		MonthlyPlan:     499,
	}, ledger.records[0])
}

func TestIssuer_Create_LedgerFailureStillReturnsIntent(t *testing.T) {
	issuer := NewIssuer(&fakeGateway{}, nil)
	issuer.SetLedger(&fakePendingLedger{err: errors.New("db down")})

	resp, err := issuer.Create(context.Background(), models.CreatePaymentIntentRequest{
		Amount:       amount(29900),
		BusinessInfo: smithPlumbing(),
	})
	require.NoError(t, err)
	assert.Equal(t, "pi_test_123", resp.PaymentIntentID)
}

func TestIssuer_Create_Metrics(t *testing.T) {
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	issuer := NewIssuer(&fakeGateway{}, nil)
	issuer.SetMetrics(m)

	_, _ = issuer.Create(context.Background(), models.CreatePaymentIntentRequest{Amount: amount(29900), BusinessInfo: smithPlumbing(), WantsGoogleAds: true})
	_, _ = issuer.Create(context.Background(), models.CreatePaymentIntentRequest{Amount: amount(5), BusinessInfo: smithPlumbing()})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.PaymentIntentsCreated.WithLabelValues("499")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PaymentIntentErrors.WithLabelValues("invalid_amount")))
}

func TestIssuer_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("any amount other than the fixed price is rejected before the processor", prop.ForAll(
		func(a int64) bool {
			if a == ExpressBuildAmount {
				return true
			}
			gw := &fakeGateway{}
			_, err := NewIssuer(gw, nil).Create(context.Background(), models.CreatePaymentIntentRequest{
				Amount:       amount(a),
				BusinessInfo: fakeBusinessInfo(),
			})
			return errors.Is(err, ErrInvalidAmount) && gw.createCalls() == 0
		},
		gen.Int64(),
	))

	properties.Property("monthly plan follows the add-on and the amount never does", prop.ForAll(
		func(wantsAds bool) bool {
			gw := &fakeGateway{}
			_, err := NewIssuer(gw, nil).Create(context.Background(), models.CreatePaymentIntentRequest{
				Amount:         amount(ExpressBuildAmount),
				BusinessInfo:   fakeBusinessInfo(),
				WantsGoogleAds: wantsAds,
			})
			if err != nil || len(gw.created) != 1 {
				return false
			}
			want := "99"
			if wantsAds {
				want = "499"
			}
			p := gw.created[0]
			return p.Metadata["monthlyPlan"] == want && *p.Amount == ExpressBuildAmount
		},
		gen.Bool(),
	))

	properties.TestingRun(t)
}
