package smilepay

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kevin07696/smilepay-service/internal/domain"
	"github.com/kevin07696/smilepay-service/internal/testutil/mocks"
)

func newTestClient(httpClient *mocks.MockHTTPClient) *Client {
	cfg := DefaultConfig()
	cfg.CircuitBreaker.MaxFailures = 2
	cfg.CircuitBreaker.Timeout = time.Hour
	return NewClient(cfg, httpClient, zap.NewNop())
}

func testParams(provider *domain.Provider) url.Values {
	txn := &domain.Transaction{Reference: "SO1001", Amount: decimal.NewFromInt(500)}
	return BuildInstructionRequest(provider, txn, "https://shop.example.com/cb")
}

func TestClient_RequestInstruction_Success(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "text/xml")
		_, _ = w.Write([]byte(atmResponse))
	}))
	defer server.Close()

	provider := testProvider(domain.MethodBankTransfer)
	provider.EndpointOverride = server.URL

	client := NewClient(DefaultConfig(), server.Client(), zap.NewNop())
	resp, err := client.RequestInstruction(context.Background(), provider, testParams(provider))
	require.NoError(t, err)

	assert.Equal(t, "SP00012345", resp.ProviderReference)
	assert.Equal(t, domain.BankAccount{BankCode: "812", AccountNo: "9999000011112222"}, resp.Instruction)
	assert.Contains(t, gotQuery, "Od_sob=SO1001")
	assert.Contains(t, gotQuery, "Pay_zg=2")
	assert.Contains(t, gotQuery, "Roturl_status=Payment_OK")
}

func TestClient_RequestInstruction_AcceptsAny2xx(t *testing.T) {
	for _, status := range []int{http.StatusOK, http.StatusCreated, http.StatusAccepted, http.StatusNonAuthoritativeInfo} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			client := newTestClient(mocks.NewMockHTTPClient(func(req *http.Request) (*http.Response, error) {
				return mocks.XMLResponse(status, atmResponse), nil
			}))
			provider := testProvider(domain.MethodBankTransfer)

			resp, err := client.RequestInstruction(context.Background(), provider, testParams(provider))
			require.NoError(t, err)
			assert.Equal(t, "SP00012345", resp.ProviderReference)
		})
	}
}

func TestClient_RequestInstruction_Non2xxIsHTTPStatus(t *testing.T) {
	for _, status := range []int{http.StatusMultipleChoices, http.StatusNotFound, http.StatusServiceUnavailable} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			client := newTestClient(mocks.NewMockHTTPClient(func(req *http.Request) (*http.Response, error) {
				return mocks.XMLResponse(status, atmResponse), nil
			}))
			provider := testProvider(domain.MethodBankTransfer)

			_, err := client.RequestInstruction(context.Background(), provider, testParams(provider))
			assert.True(t, IsGatewayError(err, KindHTTPStatus), "got %v", err)
		})
	}
}

func TestClient_RequestInstruction_ErrorKinds(t *testing.T) {
	tests := []struct {
		name string
		do   func(req *http.Request) (*http.Response, error)
		kind ErrorKind
	}{
		{
			name: "network",
			do: func(req *http.Request) (*http.Response, error) {
				return nil, errors.New("connection refused")
			},
			kind: KindNetwork,
		},
		{
			name: "timeout",
			do: func(req *http.Request) (*http.Response, error) {
				return nil, context.DeadlineExceeded
			},
			kind: KindTimeout,
		},
		{
			name: "http_status",
			do: func(req *http.Request) (*http.Response, error) {
				return mocks.XMLResponse(http.StatusBadGateway, "bad gateway"), nil
			},
			kind: KindHTTPStatus,
		},
		{
			name: "malformed",
			do: func(req *http.Request) (*http.Response, error) {
				return mocks.XMLResponse(http.StatusOK, "not xml at all <"), nil
			},
			kind: KindMalformedResponse,
		},
		{
			name: "rejected",
			do: func(req *http.Request) (*http.Response, error) {
				return mocks.XMLResponse(http.StatusOK, "<SmilePay><Status>-1</Status><Desc>Dcvc error</Desc></SmilePay>"), nil
			},
			kind: KindRejected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(mocks.NewMockHTTPClient(tt.do))
			provider := testProvider(domain.MethodIbon)

			_, err := client.RequestInstruction(context.Background(), provider, testParams(provider))
			require.Error(t, err)
			assert.True(t, IsGatewayError(err, tt.kind), "got %v", err)
		})
	}
}

func TestClient_RequestInstruction_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	provider := testProvider(domain.MethodIbon)
	provider.EndpointOverride = server.URL

	cfg := DefaultConfig()
	cfg.Timeout = 50 * time.Millisecond
	client := NewClient(cfg, server.Client(), zap.NewNop())

	_, err := client.RequestInstruction(context.Background(), provider, testParams(provider))
	assert.True(t, IsGatewayError(err, KindTimeout), "got %v", err)
}

func TestClient_CircuitOpensOnTransportFailures(t *testing.T) {
	httpClient := mocks.NewMockHTTPClient(func(req *http.Request) (*http.Response, error) {
		return nil, errors.New("connection reset")
	})
	client := newTestClient(httpClient)
	provider := testProvider(domain.MethodIbon)

	for i := 0; i < 2; i++ {
		_, err := client.RequestInstruction(context.Background(), provider, testParams(provider))
		require.True(t, IsGatewayError(err, KindNetwork))
	}

	_, err := client.RequestInstruction(context.Background(), provider, testParams(provider))
	assert.True(t, IsGatewayError(err, KindCircuitOpen), "got %v", err)
	assert.Len(t, httpClient.Calls(), 2, "open circuit must not reach the gateway")
}

func TestClient_RejectionsDoNotOpenCircuit(t *testing.T) {
	httpClient := mocks.NewMockHTTPClient(func(req *http.Request) (*http.Response, error) {
		return mocks.XMLResponse(http.StatusOK, "<SmilePay><Status>0</Status><Desc>no</Desc></SmilePay>"), nil
	})
	client := newTestClient(httpClient)
	provider := testProvider(domain.MethodIbon)

	for i := 0; i < 5; i++ {
		_, err := client.RequestInstruction(context.Background(), provider, testParams(provider))
		require.True(t, IsGatewayError(err, KindRejected))
	}
	assert.Equal(t, StateClosed, client.circuitBreaker.State())
	assert.Len(t, httpClient.Calls(), 5)
}
