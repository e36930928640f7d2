package gate

import (
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/skillmesh/skillmesh-sdk-go/pkg/model"
	"github.com/skillmesh/skillmesh-sdk-go/pkg/x402"
)

// Gin context keys populated after successful verification and settlement.
const (
	// PayerKey holds the payer address reported by the facilitator.
	PayerKey = "skillmesh_payer"
	// TransactionKey holds the settlement transaction reference.
	TransactionKey = "skillmesh_tx"
	// AmountKey holds the settled amount in atomic units.
	AmountKey = "skillmesh_amount"
)

// RouteTable maps skill names to the payment requirements of their routes.
// It is built once at server start and read concurrently without locks; it
// never mutates during a run.
type RouteTable map[string]*x402.PaymentRequirements

// BuildRouteTable derives one requirement per skill from the catalog, the
// creator's receiving address and the settlement network. baseURL, when
// non-empty, is used to advertise the resource URL.
func BuildRouteTable(skills model.Skills, payTo common.Address, network, baseURL string) (RouteTable, error) {
	asset, err := x402.USDCAsset(network)
	if err != nil {
		return nil, err
	}

	table := make(RouteTable, len(skills))
	for name, skill := range skills {
		atomic, err := skill.Parsed.AtomicUnits()
		if err != nil {
			return nil, err
		}
		resource := ""
		if baseURL != "" {
			resource = strings.TrimSuffix(baseURL, "/") + "/" + name
		}
		table[name] = &x402.PaymentRequirements{
			Scheme:            x402.SchemeExact,
			Network:           network,
			Price:             skill.Parsed.FormatX402(),
			MaxAmountRequired: atomic.String(),
			Asset:             asset,
			PayTo:             payTo.Hex(),
			MaxTimeoutSeconds: skill.Options.TimeoutMs / 1000,
			Resource:          resource,
			Description:       skill.Options.Description,
		}
	}
	return table, nil
}

// Gate applies the payment requirement of each route to inbound requests.
type Gate struct {
	table       RouteTable
	facilitator *Facilitator
	verifyOnly  bool
}

// Option configures a Gate.
type Option func(*Gate)

// VerifyOnly makes the gate skip settlement after verification. Useful for
// tests and for facilitators that settle asynchronously.
func VerifyOnly() Option {
	return func(g *Gate) { g.verifyOnly = true }
}

// New builds a Gate over an immutable route table.
func New(table RouteTable, facilitator *Facilitator, opts ...Option) *Gate {
	g := &Gate{table: table, facilitator: facilitator}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Requirement returns the payment requirement of a route, or nil for an
// unknown route.
func (g *Gate) Requirement(name string) *x402.PaymentRequirements {
	return g.table[name]
}

// Handler returns the gin middleware guarding the named route. The request
// state machine is: no payment header -> 402 with requirements; proof present
// -> facilitator verify (failure -> 402 with reason); verified -> settle and
// forward to the skill handler with settlement metadata in the context.
func (g *Gate) Handler(name string) gin.HandlerFunc {
	requirement := g.table[name]

	return func(c *gin.Context) {
		if requirement == nil {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "unknown skill"})
			return
		}

		header := c.GetHeader(x402.PaymentHeader)
		if header == "" {
			g.paymentRequired(c, requirement, "Payment required")
			return
		}

		payload, err := x402.DecodePayment(header)
		if err != nil {
			zap.L().Debug("undecodable payment header", zap.String("skill", name), zap.Error(err))
			g.paymentRequired(c, requirement, "Invalid payment header")
			return
		}

		verdict, err := g.facilitator.Verify(c.Request.Context(), payload, requirement)
		if err != nil {
			zap.L().Error("facilitator verification unavailable", zap.String("skill", name), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "payment verification unavailable"})
			return
		}
		if !verdict.IsValid {
			zap.L().Debug("payment rejected", zap.String("skill", name), zap.String("reason", verdict.InvalidReason))
			g.paymentRequired(c, requirement, verdict.InvalidReason)
			return
		}

		c.Set(PayerKey, verdict.Payer)
		c.Set(AmountKey, requirement.MaxAmountRequired)

		if !g.verifyOnly {
			settlement, err := g.facilitator.Settle(c.Request.Context(), payload, requirement)
			if err != nil {
				zap.L().Error("settlement failed", zap.String("skill", name), zap.Error(err))
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "payment settlement failed"})
				return
			}
			if !settlement.Success {
				g.paymentRequired(c, requirement, settlement.ErrorReason)
				return
			}
			if encoded, err := x402.EncodeSettlement(settlement); err == nil {
				c.Header(x402.SettlementHeader, encoded)
			}
			c.Set(TransactionKey, settlement.Transaction)
			if settlement.Payer != "" {
				c.Set(PayerKey, settlement.Payer)
			}
		}

		c.Next()
	}
}

// paymentRequired aborts the request with a 402 enumerating the route's
// requirements. 402 is a first-class outcome here, not an error.
func (g *Gate) paymentRequired(c *gin.Context, requirement *x402.PaymentRequirements, reason string) {
	c.AbortWithStatusJSON(http.StatusPaymentRequired, x402.PaymentRequired{
		X402Version: x402.Version,
		Error:       reason,
		Accepts:     []x402.PaymentRequirements{*requirement},
	})
}
