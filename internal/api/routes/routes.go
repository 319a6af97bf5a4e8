package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cipherchat/internal/api/handlers"
	"cipherchat/internal/api/middleware"
)

// Router owns the HTTP surface: account endpoints, the conversation and
// message CRUD, presence, and the websocket entry point.
type Router struct {
	engine        *gin.Engine
	auth          *handlers.AuthHandler
	conversations *handlers.ConversationHandler
	messages      *handlers.MessageHandler
	presence      *handlers.PresenceHandler
	ws            *handlers.WebSocketHandler
	authMW        *middleware.AuthMiddleware
}

func NewRouter(
	auth *handlers.AuthHandler,
	conversations *handlers.ConversationHandler,
	messages *handlers.MessageHandler,
	presence *handlers.PresenceHandler,
	ws *handlers.WebSocketHandler,
	authMW *middleware.AuthMiddleware,
) *Router {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.LogAPI())
	engine.Use(middleware.CORS())
	engine.Use(middleware.Metrics())

	r := &Router{
		engine:        engine,
		auth:          auth,
		conversations: conversations,
		messages:      messages,
		presence:      presence,
		ws:            ws,
		authMW:        authMW,
	}
	r.register()
	return r
}

func (r *Router) register() {
	r.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.engine.POST("/register", r.auth.Register)
	r.engine.POST("/token", r.auth.Login)

	// Websocket auth happens inside the handler; the token may arrive as a
	// query parameter instead of a header.
	r.engine.GET("/ws/:chatID", r.ws.Serve)

	authed := r.engine.Group("/", r.authMW.RequireAuth())
	{
		authed.POST("/chats", r.conversations.Create)
		authed.GET("/chats", r.conversations.List)
		authed.POST("/chats/:id/add-user/:userID", r.conversations.AddUser)

		authed.POST("/messages", r.messages.Send)
		authed.GET("/messages/:chatID", r.messages.History)

		authed.GET("/online-users", r.presence.ListOnline)
	}
}

// Handler exposes the engine for the HTTP server.
func (r *Router) Handler() http.Handler {
	return r.engine
}
