package chat

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/voxd/voxd/pkg/logger"
)

// SessionEntity is the persisted form of a chat session.
type SessionEntity struct {
	ChatID    string    `gorm:"primaryKey;type:varchar(64);not null"`
	CreatedAt time.Time `gorm:"autoCreateTime(3)"`
	UpdatedAt time.Time `gorm:"autoUpdateTime(3)"`

	Messages []MessageEntity `gorm:"foreignKey:ChatID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

func (SessionEntity) TableName() string { return "chat_sessions" }

// MessageEntity is one persisted message; Position keeps stored order stable.
type MessageEntity struct {
	ID       uint   `gorm:"primaryKey;autoIncrement"`
	ChatID   string `gorm:"column:chat_id;type:varchar(64);not null;index"`
	Position int    `gorm:"column:position;not null"`
	Role     string `gorm:"type:varchar(16);not null"`
	Content  string `gorm:"type:text"`
}

func (MessageEntity) TableName() string { return "chat_messages" }

func (se *SessionEntity) FromDomain(s *Session) {
	se.ChatID = s.ChatID
	se.Messages = make([]MessageEntity, len(s.Messages))
	for i, m := range s.Messages {
		se.Messages[i] = MessageEntity{
			ChatID:   s.ChatID,
			Position: i,
			Role:     m.Role,
			Content:  m.Content,
		}
	}
}

func (se *SessionEntity) ToDomain() *Session {
	messages := make([]Message, len(se.Messages))
	for i, m := range se.Messages {
		messages[i] = Message{Role: m.Role, Content: m.Content}
	}
	return &Session{ChatID: se.ChatID, Messages: messages}
}

// GormStore persists chat sessions in mysql.
type GormStore struct {
	db     *gorm.DB
	logger *logger.Logger
}

func NewGormStore(db *gorm.DB, log *logger.Logger) (*GormStore, error) {
	if err := db.AutoMigrate(&SessionEntity{}, &MessageEntity{}); err != nil {
		return nil, fmt.Errorf("migrate chat tables: %w", err)
	}
	return &GormStore{db: db, logger: log}, nil
}

func (s *GormStore) Load(chatID string) (*Session, error) {
	var entity SessionEntity
	err := s.db.First(&entity, "chat_id = ?", chatID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrChatNotFound
		}
		return nil, fmt.Errorf("query chat session: %w", err)
	}

	if err := s.db.Order("position asc").Find(&entity.Messages, "chat_id = ?", chatID).Error; err != nil {
		return nil, fmt.Errorf("query chat messages: %w", err)
	}
	return entity.ToDomain(), nil
}

// Save rewrites the whole session; histories are short and append-only, so a
// delete-and-insert inside one transaction keeps positions trivially correct.
func (s *GormStore) Save(session *Session) error {
	var entity SessionEntity
	entity.FromDomain(session)

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("chat_id = ?", entity.ChatID).Delete(&MessageEntity{}).Error; err != nil {
			return err
		}
		if err := tx.Where("chat_id = ?", entity.ChatID).Delete(&SessionEntity{}).Error; err != nil {
			return err
		}
		return tx.Create(&entity).Error
	})
	if err != nil {
		return fmt.Errorf("save chat session: %w", err)
	}

	s.logger.Infof("saved chat history for id: %s", session.ChatID)
	return nil
}
