package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-api/internal/model"
)

// ContextPrincipal is the gin context key the auth middleware stores the caller under.
const ContextPrincipal = "principal"

func SetPrincipal(c *gin.Context, p *model.Principal) {
	c.Set(ContextPrincipal, p)
}

// CurrentPrincipal returns the authenticated caller, or nil outside the
// authenticated route group.
func CurrentPrincipal(c *gin.Context) *model.Principal {
	if v, exists := c.Get(ContextPrincipal); exists {
		if p, ok := v.(*model.Principal); ok {
			return p
		}
	}
	return nil
}
