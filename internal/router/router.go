package router

import (
	"context"
	"strings"
	"time"

	"github.com/nidhogg/makers-assistant/internal/chatbot"
	"github.com/nidhogg/makers-assistant/internal/command"
	"github.com/nidhogg/makers-assistant/internal/gateway"
	"go.uber.org/zap"
)

// Assistant answers free-text messages.
type Assistant interface {
	ProcessMessage(ctx context.Context, text string) chatbot.Reply
}

// Sender delivers replies to a platform.
type Sender interface {
	Send(ctx context.Context, msg *gateway.OutboundMessage) error
}

// MessageRouter sends slash commands to the command registry and everything
// else to the assistant.
type MessageRouter struct {
	assistant Assistant
	gw        Sender
	commands  *command.Registry
	timeout   time.Duration
	logger    *zap.Logger
}

// New creates a new MessageRouter. timeout bounds one message; <= 0 means 90s.
func New(assistant Assistant, gw Sender, commands *command.Registry,
	timeout time.Duration, logger *zap.Logger) *MessageRouter {
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &MessageRouter{
		assistant: assistant,
		gw:        gw,
		commands:  commands,
		timeout:   timeout,
		logger:    logger,
	}
}

// Handle routes an inbound message. Signature matches gateway.MessageHandler.
func (mr *MessageRouter) Handle(msg *gateway.InboundMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), mr.timeout)
	defer cancel()

	content := strings.TrimSpace(msg.Content)
	mr.logger.Info("routing message",
		zap.String("platform", msg.Platform),
		zap.String("channel", msg.ChannelID),
		zap.String("user", msg.UserName),
	)
	if content == "" {
		return
	}

	if strings.HasPrefix(content, "/") && mr.commands != nil {
		cc := &command.CommandContext{
			Platform:  msg.Platform,
			ChannelID: msg.ChannelID,
			UserID:    msg.UserID,
			UserName:  msg.UserName,
		}
		result, err := mr.commands.Dispatch(ctx, content, cc)
		if err != nil {
			mr.logger.Error("command dispatch error", zap.Error(err))
			mr.sendReply(ctx, msg, &gateway.OutboundMessage{Content: "Command error: " + err.Error()})
			return
		}
		mr.sendReply(ctx, msg, &gateway.OutboundMessage{Content: result.Content, Tier: "command"})
		return
	}

	reply := mr.assistant.ProcessMessage(ctx, content)
	mr.sendReply(ctx, msg, &gateway.OutboundMessage{
		Content:  reply.Text,
		Tier:     string(reply.Tier),
		Degraded: reply.Degraded,
	})
}

// sendReply addresses out to the originating platform/channel and sends it.
func (mr *MessageRouter) sendReply(ctx context.Context, orig *gateway.InboundMessage, out *gateway.OutboundMessage) {
	out.Platform = orig.Platform
	out.ChannelID = orig.ChannelID
	out.ReplyTo = orig.ReplyTo
	if err := mr.gw.Send(ctx, out); err != nil {
		mr.logger.Error("send reply failed", zap.Error(err))
	}
}
