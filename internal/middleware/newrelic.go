package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
)

// NewRelicIdentity annotates the request's New Relic transaction with the
// caller. It is a no-op when the agent is disabled or no caller is set.
func NewRelicIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if txn := nrgin.Transaction(c); txn != nil {
			if id, ok := Caller(c); ok {
				txn.AddAttribute("identity.id", id.ID)
				txn.AddAttribute("identity.role", string(id.Role))
			}
		}
		c.Next()
	}
}
