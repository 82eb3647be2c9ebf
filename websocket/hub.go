package websocket

import (
	"log"
	"sync"

	"github.com/google/uuid"
)

// Conn is the part of a websocket connection the hub writes to.
type Conn interface {
	WriteJSON(v interface{}) error
	Close() error
}

type Client struct {
	UserID uuid.UUID
	Conn   Conn
}

// Event is pushed to every live connection of one user.
type Event struct {
	UserID  uuid.UUID   `json:"-"`
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

var clients = make(map[uuid.UUID]Conn)
var clientsMu sync.RWMutex
var Register = make(chan *Client)
var Unregister = make(chan *Client)
var Broadcast = make(chan *Event, 256)

func init() {
	go RunHub()
}

func RunHub() {
	for {
		select {
		case client := <-Register:
			log.Printf("Client registered: %s", client.UserID)
			clientsMu.Lock()
			clients[client.UserID] = client.Conn
			clientsMu.Unlock()
		case client := <-Unregister:
			log.Printf("Client unregistered: %s", client.UserID)
			clientsMu.Lock()
			if conn, ok := clients[client.UserID]; ok && conn == client.Conn {
				delete(clients, client.UserID)
			}
			clientsMu.Unlock()
		case event := <-Broadcast:
			clientsMu.RLock()
			conn, ok := clients[event.UserID]
			clientsMu.RUnlock()
			if !ok {
				continue
			}
			if err := conn.WriteJSON(event); err != nil {
				log.Printf("Error sending %s event to client %s: %v", event.Type, event.UserID, err)
				conn.Close()
				clientsMu.Lock()
				if current, ok := clients[event.UserID]; ok && current == conn {
					delete(clients, event.UserID)
				}
				clientsMu.Unlock()
			}
		}
	}
}

// IsOnline reports whether userID has a registered connection.
func IsOnline(userID uuid.UUID) bool {
	clientsMu.RLock()
	defer clientsMu.RUnlock()
	_, ok := clients[userID]
	return ok
}

// Push queues an event for userID. Events for users without a live
// connection are dropped.
func Push(userID uuid.UUID, eventType string, payload interface{}) {
	Broadcast <- &Event{UserID: userID, Type: eventType, Payload: payload}
}

// HubPusher adapts the package-level hub to notifications.Pusher.
type HubPusher struct{}

func (HubPusher) Push(userID uuid.UUID, eventType string, payload interface{}) {
	Push(userID, eventType, payload)
}
