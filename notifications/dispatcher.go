package notifications

import (
	"context"
	"fmt"
	"html"
	"log"
	"sync"
	"time"

	"github.com/anjiri1684/tutor_fees/models"
	"github.com/anjiri1684/tutor_fees/services"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type EmailSender interface {
	Send(ctx context.Context, toName, toEmail, subject, htmlContent string) error
}

type Pusher interface {
	Push(userID uuid.UUID, eventType string, payload interface{})
}

// Dispatcher fans a fee notification out to the user's live websocket
// connection and to email. Delivery runs in the background; failures are
// logged and never reach the caller.
type Dispatcher struct {
	db      *gorm.DB
	email   EmailSender
	push    Pusher
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewDispatcher(db *gorm.DB, email EmailSender, push Pusher) *Dispatcher {
	return &Dispatcher{db: db, email: email, push: push, timeout: 15 * time.Second}
}

var _ services.Notifier = (*Dispatcher)(nil)

func (d *Dispatcher) Notify(_ context.Context, n services.Notification) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.deliver(n)
	}()
}

// Wait blocks until every queued delivery has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) deliver(n services.Notification) {
	if d.push != nil {
		d.push.Push(n.UserID, n.Type, n)
	}
	if d.email == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	var user models.User
	if err := d.db.WithContext(ctx).Select("full_name", "email").First(&user, "id = ?", n.UserID).Error; err != nil {
		log.Printf("🔥 Notification %s: could not load user %s: %v", n.Type, n.UserID, err)
		return
	}

	body := fmt.Sprintf("<h1>%s</h1><p>Hi %s,</p><p>%s</p>",
		html.EscapeString(n.Subject), html.EscapeString(user.FullName), html.EscapeString(n.Body))
	if err := d.email.Send(ctx, user.FullName, user.Email, n.Subject, body); err != nil {
		log.Printf("🔥 Failed to email %s notification to %s: %v", n.Type, user.Email, err)
		return
	}
	log.Printf("✅ Sent %s notification to %s", n.Type, user.Email)
}
