package msgapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"BProject/logger"
	midsec "BProject/middleware/security"
	"BProject/service/chat"
	errs "BProject/tools/errs"
)

// REST entry path for messaging. Persistence happens here; real-time
// delivery rides the gateway bridge and is strictly best-effort, so a
// bridge failure never fails the HTTP write.

type sendRequest struct {
	ConversationID string `json:"conversationId"`
	RecipientID    string `json:"recipientId"`
	Content        string `json:"content" binding:"required"`
}

// HandlerSendMessage is POST /api/conversations/messages. It persists through
// the stores directly and pushes the realtime events over the bridge, so the
// write succeeds even while the gateway is down.
func HandlerSendMessage(convs chat.ConversationStore, users chat.UserStore, relay chat.EventRelay) gin.HandlerFunc {
	return func(c *gin.Context) {
		ident := midsec.IdentityFrom(c)
		if ident == nil {
			c.JSON(http.StatusUnauthorized, errs.ErrAuthRequired)
			return
		}
		var req sendRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		payload, err := chat.DeliverMessage(c.Request.Context(), convs, users, chat.BridgeEmitter{}, relay, ident.UserID, chat.SendMessagePayload{
			ConversationID: req.ConversationID,
			RecipientID:    req.RecipientID,
			Content:        req.Content,
		})
		if err != nil {
			if ce, ok := err.(*errs.CodeError); ok {
				c.JSON(http.StatusBadRequest, ce)
				return
			}
			logger.Errorf("[msgapi] send user=%s: %v", ident.UserID, err)
			c.JSON(http.StatusInternalServerError, errs.ErrStoreFailure)
			return
		}
		c.JSON(http.StatusCreated, payload)
	}
}

// HandlerOnlineUsers is GET /api/presence/online.
func HandlerOnlineUsers() gin.HandlerFunc {
	return func(c *gin.Context) {
		srv, err := chat.Gateway()
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, errs.ErrBridgeNotReady)
			return
		}
		conns, users := srv.Presence().Stats()
		c.JSON(http.StatusOK, gin.H{
			"online":      srv.Presence().ListOnlineUsers(),
			"connections": conns,
			"uniqueUsers": users,
		})
	}
}

type statusesRequest struct {
	UserIDs []string `json:"userIds" binding:"required"`
}

// HandlerStatuses is POST /api/presence/statuses: bulk status lookup for
// conversation lists.
func HandlerStatuses() gin.HandlerFunc {
	return func(c *gin.Context) {
		srv, err := chat.Gateway()
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, errs.ErrBridgeNotReady)
			return
		}
		var req statusesRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"statuses": srv.Presence().GetStatuses(req.UserIDs)})
	}
}
