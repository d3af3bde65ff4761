// The stub backend is an in-memory stand-in for the real storefront
// backend: the envelope REST API plus a STOMP-over-WebSocket broker for
// the queue and seat topics. It exists so the client layer can be
// developed and demoed without any infrastructure.
package main

import (
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"ticket-storefront/shared"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// local development tool; accept anything
		return true
	},
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Starting stub backend on :%s...", port)

	hub := newHub()
	go hub.run()

	server := newServer(hub)

	router := gin.Default()

	api := router.Group("/api/v1", bearerAuth)
	{
		api.GET("/events/:eventId/queue/status", server.handleQueueStatus)
		api.POST("/events/:eventId/queue/move-to-back", server.handleMoveToBack)
		api.POST("/events/:eventId/queue/process-until-me", server.handleProcessUntilMe)
		api.GET("/events/:eventId/seats", server.handleSeats)
		api.POST("/events/:eventId/seats/:seatId/select", server.handleSelectSeat)
		api.POST("/events/:eventId/seats/:seatId/deselect", server.handleDeselectSeat)
	}

	router.GET(shared.WebSocketEndpoint, func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("[WS] upgrade failed: %v", err)
			return
		}
		session := newSession(hub, conn)
		hub.register <- session
		go session.writePump()
		go session.readPump()
	})

	router.GET(shared.APIEndpointHealth, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "stub-backend"})
	})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		log.Println("Shutting down stub backend...")
		os.Exit(0)
	}()

	log.Printf("Stub backend listening on :%s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
