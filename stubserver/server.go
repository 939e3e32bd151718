// Package stubserver is an in-memory stand-in for the clinic backend's chat
// and notification endpoints. It exists for integration tests and local
// development; it mirrors the wire contract, not the production behavior
// around storage or encryption.
package stubserver

import (
	"fmt"
	"net/http"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"clinicsync/models"
)

// Employee is a seeded chat identity.
type Employee struct {
	ID        int64
	Username  string
	FirstName string
	LastName  string
	Role      string
	BranchID  int64
}

type storedMessage struct {
	ID         int64
	SenderID   int64
	ReceiverID int64
	Type       string
	Text       string
	CreatedAt  time.Time
	IsRead     bool
}

type storedNotification struct {
	ID          int64
	EmployeeID  int64
	CreatedByID int64
	BranchID    int64
	Message     string
	LinkURL     string
	IsRead      bool
	CreatedAt   time.Time
}

// Server holds the in-memory dataset behind the handlers.
type Server struct {
	mu                 sync.Mutex
	employees          []Employee
	messages           []*storedMessage
	notifications      []*storedNotification
	nextMessageID      int64
	nextNotificationID int64
	seenClientKeys     map[string]bool
}

// New returns an empty stub backend.
func New() *Server {
	return &Server{
		nextMessageID:      1,
		nextNotificationID: 1,
		seenClientKeys:     make(map[string]bool),
	}
}

// AddEmployee seeds a chat identity.
func (s *Server) AddEmployee(e Employee) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.employees = append(s.employees, e)
}

// SeedMessage inserts a message directly, bypassing the send endpoint.
func (s *Server) SeedMessage(senderID, receiverID int64, text string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertMessage(senderID, receiverID, models.MessageTypeText, text)
}

// SeedNotification inserts a notification directly.
func (s *Server) SeedNotification(employeeID, createdByID, branchID int64, message, linkURL string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertNotification(employeeID, createdByID, branchID, message, linkURL)
}

// Handler returns the HTTP surface: chat.php and notifications.php under one
// gin engine, CORS open for local development clients.
func (s *Server) Handler() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Content-Length"},
		MaxAge:       12 * time.Hour,
	}))

	r.GET("/chat.php", s.handleChatFetch)
	r.POST("/chat.php", s.handleChatSend)
	r.GET("/notifications.php", s.handleNotificationList)
	r.POST("/notifications.php", s.handleNotificationAction)

	return r
}

func (s *Server) handleChatFetch(c *gin.Context) {
	employeeID, _ := strconv.ParseInt(c.Query("employee_id"), 10, 64)
	branchID, _ := strconv.ParseInt(c.Query("branch_id"), 10, 64)
	if employeeID == 0 || branchID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Missing employee_id or branch_id"})
		return
	}

	switch c.Query("action") {
	case "users":
		c.JSON(http.StatusOK, gin.H{"success": true, "users": s.partnerList(employeeID)})
	case "fetch":
		partnerID, _ := strconv.ParseInt(c.Query("partner_id"), 10, 64)
		if partnerID == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Missing partner ID"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "messages": s.conversation(employeeID, partnerID)})
	default:
		c.JSON(http.StatusOK, gin.H{"success": false, "message": "Invalid action"})
	}
}

func (s *Server) handleChatSend(c *gin.Context) {
	employeeID, _ := strconv.ParseInt(c.PostForm("employee_id"), 10, 64)
	branchID, _ := strconv.ParseInt(c.PostForm("branch_id"), 10, 64)
	if employeeID == 0 || branchID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Missing employee_id or branch_id"})
		return
	}
	if c.PostForm("action") != "send" {
		c.JSON(http.StatusOK, gin.H{"success": false, "message": "Invalid action"})
		return
	}

	receiverID, _ := strconv.ParseInt(c.PostForm("receiver_id"), 10, 64)
	if receiverID == 0 {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Send Error: Missing receiver ID."})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// A replayed idempotency key collapses onto the original message.
	clientKey := c.PostForm("client_key")
	if clientKey != "" {
		if s.seenClientKeys[clientKey] {
			c.JSON(http.StatusOK, gin.H{"success": true})
			return
		}
		s.seenClientKeys[clientKey] = true
	}

	var messageType, content string
	if file, err := c.FormFile("file"); err == nil && file != nil {
		messageType = attachmentType(file.Filename)
		content = "admin/uploads/chat_uploads/" + filepath.Base(file.Filename)
	} else if text := strings.TrimSpace(c.PostForm("message_text")); text != "" {
		messageType = models.MessageTypeText
		content = text
	} else {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Send Error: Message or File required."})
		return
	}

	s.insertMessage(employeeID, receiverID, messageType, content)
	s.insertNotification(receiverID, employeeID, branchID, "New message",
		fmt.Sprintf("chat_with_employee_id:%d", employeeID))

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) handleNotificationList(c *gin.Context) {
	employeeID, _ := strconv.ParseInt(c.Query("employee_id"), 10, 64)
	if employeeID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Employee ID required", "data": []models.Notification{}})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data := make([]models.Notification, 0)
	unread := 0
	for i := len(s.notifications) - 1; i >= 0; i-- {
		n := s.notifications[i]
		if n.EmployeeID != employeeID {
			continue
		}
		if !n.IsRead {
			unread++
		}
		data = append(data, s.wireNotification(n))
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "data": data, "unread_count": unread})
}

func (s *Server) handleNotificationAction(c *gin.Context) {
	var req struct {
		Action         string `json:"action"`
		NotificationID int64  `json:"notification_id"`
		EmployeeID     int64  `json:"employee_id"`
		BranchID       int64  `json:"branch_id"`
		TargetUserID   int64  `json:"target_user_id"`
		Message        string `json:"message"`
		LinkURL        string `json:"link_url"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Invalid JSON body"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch req.Action {
	case "mark_read":
		if req.NotificationID == 0 {
			c.JSON(http.StatusOK, gin.H{"status": "error", "message": "Notification ID missing"})
			return
		}
		for _, n := range s.notifications {
			if n.ID == req.NotificationID {
				n.IsRead = true
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "success", "message": "Marked as read"})
	case "mark_all_read":
		for _, n := range s.notifications {
			if n.EmployeeID == req.EmployeeID {
				n.IsRead = true
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "success", "message": "All marked as read"})
	case "delete":
		if req.NotificationID == 0 {
			c.JSON(http.StatusOK, gin.H{"status": "error", "message": "Notification ID missing"})
			return
		}
		kept := s.notifications[:0]
		for _, n := range s.notifications {
			if n.ID != req.NotificationID {
				kept = append(kept, n)
			}
		}
		s.notifications = kept
		c.JSON(http.StatusOK, gin.H{"status": "success", "message": "Notification deleted"})
	case "delete_all":
		if req.EmployeeID == 0 {
			c.JSON(http.StatusOK, gin.H{"status": "error", "message": "Employee ID missing"})
			return
		}
		kept := s.notifications[:0]
		for _, n := range s.notifications {
			if n.EmployeeID != req.EmployeeID {
				kept = append(kept, n)
			}
		}
		s.notifications = kept
		c.JSON(http.StatusOK, gin.H{"status": "success", "message": "All notifications deleted"})
	case "send":
		if req.TargetUserID == 0 || strings.TrimSpace(req.Message) == "" {
			c.JSON(http.StatusOK, gin.H{"status": "error", "message": "Missing target_user_id or message"})
			return
		}
		id := s.insertNotification(req.TargetUserID, req.EmployeeID, req.BranchID, req.Message, req.LinkURL)
		c.JSON(http.StatusOK, gin.H{"status": "success", "notification_id": id})
	default:
		c.JSON(http.StatusOK, gin.H{"status": "error", "message": "Invalid action"})
	}
}

// partnerList mirrors the production ordering: most unread first, then name.
func (s *Server) partnerList(employeeID int64) []models.Partner {
	s.mu.Lock()
	defer s.mu.Unlock()

	partners := make([]models.Partner, 0)
	for _, e := range s.employees {
		if e.ID == employeeID {
			continue
		}
		unread := 0
		for _, m := range s.messages {
			if m.SenderID == e.ID && m.ReceiverID == employeeID && !m.IsRead {
				unread++
			}
		}
		partners = append(partners, models.Partner{
			ID:          e.ID,
			Username:    e.Username,
			Role:        e.Role,
			UnreadCount: unread,
		})
	}

	sort.SliceStable(partners, func(i, j int) bool {
		if partners[i].UnreadCount != partners[j].UnreadCount {
			return partners[i].UnreadCount > partners[j].UnreadCount
		}
		return partners[i].Username < partners[j].Username
	})

	return partners
}

// conversation returns both directions ascending by id and marks inbound
// messages read, like the production fetch action does.
func (s *Server) conversation(employeeID, partnerID int64) []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	messages := make([]models.Message, 0)
	for _, m := range s.messages {
		outbound := m.SenderID == employeeID && m.ReceiverID == partnerID
		inbound := m.SenderID == partnerID && m.ReceiverID == employeeID
		if !outbound && !inbound {
			continue
		}

		isRead := 0
		if m.IsRead {
			isRead = 1
		}
		messages = append(messages, models.Message{
			MessageID:        m.ID,
			SenderEmployeeID: m.SenderID,
			MessageType:      m.Type,
			MessageText:      m.Text,
			CreatedAt:        m.CreatedAt.Format(time.RFC3339),
			IsRead:           isRead,
			IsSender:         outbound,
		})

		if inbound {
			m.IsRead = true
		}
	}

	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].MessageID < messages[j].MessageID
	})

	return messages
}

func (s *Server) insertMessage(senderID, receiverID int64, messageType, text string) int64 {
	id := s.nextMessageID
	s.nextMessageID++
	s.messages = append(s.messages, &storedMessage{
		ID:         id,
		SenderID:   senderID,
		ReceiverID: receiverID,
		Type:       messageType,
		Text:       text,
		CreatedAt:  time.Now().UTC(),
	})
	return id
}

func (s *Server) insertNotification(employeeID, createdByID, branchID int64, message, linkURL string) int64 {
	id := s.nextNotificationID
	s.nextNotificationID++
	s.notifications = append(s.notifications, &storedNotification{
		ID:          id,
		EmployeeID:  employeeID,
		CreatedByID: createdByID,
		BranchID:    branchID,
		Message:     message,
		LinkURL:     linkURL,
		CreatedAt:   time.Now().UTC(),
	})
	return id
}

func (s *Server) wireNotification(n *storedNotification) models.Notification {
	isRead := 0
	if n.IsRead {
		isRead = 1
	}
	wire := models.Notification{
		NotificationID: n.ID,
		Message:        n.Message,
		LinkURL:        n.LinkURL,
		IsRead:         isRead,
		CreatedAt:      n.CreatedAt.Format(time.RFC3339),
	}
	for _, e := range s.employees {
		if e.ID == n.CreatedByID {
			wire.FirstName = e.FirstName
			wire.LastName = e.LastName
			break
		}
	}
	return wire
}

func attachmentType(filename string) string {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), ".")) {
	case "jpg", "jpeg", "png", "gif", "webp":
		return models.MessageTypeImage
	case "pdf":
		return models.MessageTypePDF
	default:
		return models.MessageTypeDoc
	}
}
