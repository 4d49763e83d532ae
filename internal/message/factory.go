package message

import (
	"time"

	"github.com/google/uuid"
)

// newMessage stamps a fresh id and timestamp. The factory constructors do not
// validate their arguments; callers are server-internal code.
func newMessage(t Type, sender, content string) Message {
	return Message{
		ID:        uuid.NewString(),
		Type:      t,
		Sender:    sender,
		Content:   content,
		Timestamp: time.Now(),
		Metadata:  make(map[string]any),
	}
}

// NewText builds a group text message.
func NewText(sender, content string) Message {
	return newMessage(TypeText, sender, content)
}

// NewPrivateText builds a text message addressed to one recipient.
func NewPrivateText(sender, recipient, content string) Message {
	m := newMessage(TypeText, sender, content)
	m.Recipient = recipient
	return m
}

// NewSystem builds a SYSTEM_NOTICE with the reserved system sender.
func NewSystem(content string) Message {
	return newMessage(TypeSystemNotice, SystemSender, content)
}

// NewUserJoin builds the join notice broadcast when a user connects.
// Metadata carries the joining username under "joinedUser".
func NewUserJoin(username string) Message {
	m := newMessage(TypeUserJoin, SystemSender, username+" 加入了聊天室")
	m.Metadata["joinedUser"] = username
	return m
}

// NewUserLeave builds the leave notice broadcast when a user disconnects.
// Metadata carries the leaving username under "leftUser".
func NewUserLeave(username string) Message {
	m := newMessage(TypeUserLeave, SystemSender, username+" 离开了聊天室")
	m.Metadata["leftUser"] = username
	return m
}

// NewImage builds an image message. The caption becomes the content and the
// image location is carried in metadata.
func NewImage(sender, imageURL, caption string) Message {
	m := newMessage(TypeImage, sender, caption)
	m.Metadata["imageUrl"] = imageURL
	return m
}

// NewFile builds a file-share message with a human-readable notice as content
// and the attachment details in metadata.
func NewFile(sender, fileURL, fileName string, fileSize int64) Message {
	m := newMessage(TypeFile, sender, "分享了文件: "+fileName)
	m.Metadata["fileUrl"] = fileURL
	m.Metadata["fileName"] = fileName
	m.Metadata["fileSize"] = fileSize
	return m
}
