package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/communa/pkg/db/pagination"
)

func (s *Server) GetPlatformSubscription(c *gin.Context) {
	sub, err := s.subscriptionSvc.GetPlatformSubscription(c.Request.Context(), c.Param("tenant_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if sub == nil {
		AbortWithError(c, ErrNotFound)
		return
	}
	c.JSON(http.StatusOK, sub)
}

func (s *Server) GetMemberSubscription(c *gin.Context) {
	sub, err := s.subscriptionSvc.GetMemberSubscription(c.Request.Context(), c.Param("tenant_id"), c.Param("user_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if sub == nil {
		AbortWithError(c, ErrNotFound)
		return
	}
	c.JSON(http.StatusOK, sub)
}

func (s *Server) ListTransactions(c *gin.Context) {
	var page pagination.Params
	if err := c.ShouldBindQuery(&page); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	items, total, err := s.transactionSvc.ListTransactions(
		c.Request.Context(),
		c.Param("tenant_id"),
		c.Query("scope"),
		page,
	)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"items": items,
		"total": total,
	})
}

func (s *Server) GetAccountStatus(c *gin.Context) {
	account, err := s.accountSvc.GetAccountStatus(c.Request.Context(), c.Param("tenant_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if account == nil {
		AbortWithError(c, ErrNotFound)
		return
	}
	c.JSON(http.StatusOK, account)
}
