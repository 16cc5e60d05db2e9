package feishu

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	"github.com/larksuite/oapi-sdk-go/v3/event/dispatcher"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	larkws "github.com/larksuite/oapi-sdk-go/v3/ws"
	"github.com/rs/zerolog"

	"github.com/socky-bot/socky/internal/logging"
)

// directorySize bounds the open_id <-> name cache
const directorySize = 4096

// Message represents a received Feishu message
type Message struct {
	ChatID     string
	MsgID      string
	MsgType    string // text, post
	ChatType   string // p2p (private), group
	Content    string // text content, bot mention replaced by the bare bot name
	SenderID   string // open_id
	SenderName string // display name, falls back to open_id
}

// MemberEventKind is the kind of a chat membership change
type MemberEventKind string

const (
	MemberAdded     MemberEventKind = "added"     // joined or was invited
	MemberDeleted   MemberEventKind = "deleted"   // removed by an operator
	MemberWithdrawn MemberEventKind = "withdrawn" // left on their own
)

// MemberEvent is one user entering or leaving a group chat
type MemberEvent struct {
	Kind   MemberEventKind
	ChatID string
	OpenID string
	Name   string
}

// ChatMember represents a member in a chat
type ChatMember struct {
	MemberID string `json:"member_id"`
	Name     string `json:"name"`
}

// MessageHandler is the callback for received messages
type MessageHandler func(msg *Message)

// MemberHandler is the callback for membership changes
type MemberHandler func(ev *MemberEvent)

// Client is the Feishu API client
type Client struct {
	appID     string
	appSecret string
	larkCli   *lark.Client
	wsCli     *larkws.Client
	onMessage MessageHandler
	onMember  MemberHandler
	ctx       context.Context
	cancel    context.CancelFunc
	botOpenID string
	botName   string

	names *lru.Cache[string, string] // open_id -> display name
	ids   *lru.Cache[string, string] // lowercase display name -> open_id
	log   zerolog.Logger
}

// NewClient creates a new Feishu client
func NewClient(appID, appSecret string) *Client {
	names, _ := lru.New[string, string](directorySize)
	ids, _ := lru.New[string, string](directorySize)
	return &Client{
		appID:     appID,
		appSecret: appSecret,
		larkCli:   lark.NewClient(appID, appSecret),
		names:     names,
		ids:       ids,
		log:       logging.Get("feishu"),
	}
}

// OnMessage sets the message handler
func (c *Client) OnMessage(handler MessageHandler) {
	c.onMessage = handler
}

// OnMember sets the membership handler
func (c *Client) OnMember(handler MemberHandler) {
	c.onMember = handler
}

// Start connects to Feishu via WebSocket and blocks until ctx ends or Stop
func (c *Client) Start(ctx context.Context) error {
	c.ctx, c.cancel = context.WithCancel(ctx)

	if err := c.fetchBotInfo(); err != nil {
		c.log.Warn().Err(err).Msg("Failed to fetch bot info")
	}

	// Handlers must return quickly so the SDK can ACK; otherwise Feishu retries
	eventHandler := dispatcher.NewEventDispatcher("", "").
		OnP2MessageReceiveV1(func(ctx context.Context, event *larkim.P2MessageReceiveV1) error {
			go c.handleMessage(event)
			return nil
		}).
		OnP2ChatMemberUserAddedV1(func(ctx context.Context, event *larkim.P2ChatMemberUserAddedV1) error {
			if event.Event != nil {
				go c.handleMembers(MemberAdded, event.Event.ChatId, event.Event.Users)
			}
			return nil
		}).
		OnP2ChatMemberUserDeletedV1(func(ctx context.Context, event *larkim.P2ChatMemberUserDeletedV1) error {
			if event.Event != nil {
				go c.handleMembers(MemberDeleted, event.Event.ChatId, event.Event.Users)
			}
			return nil
		}).
		OnP2ChatMemberUserWithdrawnV1(func(ctx context.Context, event *larkim.P2ChatMemberUserWithdrawnV1) error {
			if event.Event != nil {
				go c.handleMembers(MemberWithdrawn, event.Event.ChatId, event.Event.Users)
			}
			return nil
		})

	c.wsCli = larkws.NewClient(c.appID, c.appSecret,
		larkws.WithEventHandler(eventHandler),
		larkws.WithLogLevel(larkcore.LogLevelInfo),
	)

	c.log.Info().Msg("Starting WebSocket connection")

	// the SDK keeps blocking after ctx ends, so wait on both
	errCh := make(chan error, 1)
	go func() {
		errCh <- c.wsCli.Start(c.ctx)
	}()
	select {
	case err := <-errCh:
		return err
	case <-c.ctx.Done():
		return nil
	}
}

// Stop disconnects from Feishu
func (c *Client) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
}

// BotName returns the app name learned at startup
func (c *Client) BotName() string {
	return c.botName
}

// fetchBotInfo fetches the bot's own open_id and app name
func (c *Client) fetchBotInfo() error {
	tokenReq := fmt.Sprintf(`{"app_id":"%s","app_secret":"%s"}`, c.appID, c.appSecret)
	tokenResp, err := http.Post(
		"https://open.feishu.cn/open-apis/auth/v3/tenant_access_token/internal",
		"application/json",
		strings.NewReader(tokenReq),
	)
	if err != nil {
		return fmt.Errorf("get token: %w", err)
	}
	defer tokenResp.Body.Close()

	var tokenResult struct {
		Code              int    `json:"code"`
		TenantAccessToken string `json:"tenant_access_token"`
	}
	if err := json.NewDecoder(tokenResp.Body).Decode(&tokenResult); err != nil {
		return fmt.Errorf("decode token: %w", err)
	}

	req, _ := http.NewRequest("GET", "https://open.feishu.cn/open-apis/bot/v3/info", nil)
	req.Header.Set("Authorization", "Bearer "+tokenResult.TenantAccessToken)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("get bot info: %w", err)
	}
	defer resp.Body.Close()

	var botResult struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
		Bot  struct {
			OpenID  string `json:"open_id"`
			AppName string `json:"app_name"`
		} `json:"bot"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&botResult); err != nil {
		return fmt.Errorf("decode bot info: %w", err)
	}
	if botResult.Code != 0 {
		return fmt.Errorf("API error: %s", botResult.Msg)
	}

	c.botOpenID = botResult.Bot.OpenID
	c.botName = botResult.Bot.AppName
	c.log.Info().Str("open_id", c.botOpenID).Str("name", c.botName).Msg("Bot identity")
	return nil
}

// handleMessage processes incoming Feishu messages
func (c *Client) handleMessage(event *larkim.P2MessageReceiveV1) {
	if event.Event == nil || event.Event.Message == nil {
		return
	}
	rawMsg := event.Event.Message
	sender := event.Event.Sender

	// Skip our own messages
	if sender != nil && sender.SenderType != nil && *sender.SenderType == "app" {
		return
	}
	if rawMsg.ChatId == nil || rawMsg.MessageId == nil || rawMsg.MessageType == nil || rawMsg.Content == nil {
		return
	}

	msg := &Message{
		ChatID:  *rawMsg.ChatId,
		MsgID:   *rawMsg.MessageId,
		MsgType: *rawMsg.MessageType,
	}
	if rawMsg.ChatType != nil {
		msg.ChatType = *rawMsg.ChatType
	}
	if sender != nil && sender.SenderId != nil && sender.SenderId.OpenId != nil {
		msg.SenderID = *sender.SenderId.OpenId
	}

	// Map mention keys (@_user_1) to names; the bot's own mention becomes its bare name
	mentionMap := make(map[string]string)
	for _, mention := range rawMsg.Mentions {
		if mention.Key == nil || mention.Name == nil {
			continue
		}
		name := "@" + *mention.Name
		if mention.Id != nil && mention.Id.OpenId != nil {
			c.remember(*mention.Id.OpenId, *mention.Name)
			if *mention.Id.OpenId == c.botOpenID {
				name = *mention.Name
			}
		}
		mentionMap[*mention.Key] = name
	}

	switch msg.MsgType {
	case "text":
		msg.Content = parseTextContent(*rawMsg.Content, mentionMap)
	case "post":
		msg.Content = parsePostContent(*rawMsg.Content, mentionMap)
	default:
		c.log.Debug().Str("type", msg.MsgType).Msg("Unsupported message type")
		return
	}

	msg.SenderName = c.resolveName(msg.ChatID, msg.SenderID)
	c.log.Debug().
		Str("chat", msg.ChatID).
		Str("chat_type", msg.ChatType).
		Str("sender", msg.SenderName).
		Str("text", truncate(msg.Content, 50)).
		Msg("Received")

	if c.onMessage != nil {
		c.onMessage(msg)
	}
}

// handleMembers fans a membership event out per user
func (c *Client) handleMembers(kind MemberEventKind, chatID *string, users []*larkim.ChatMemberUser) {
	if chatID == nil {
		return
	}
	for _, u := range users {
		ev := &MemberEvent{Kind: kind, ChatID: *chatID}
		if u.UserId != nil && u.UserId.OpenId != nil {
			ev.OpenID = *u.UserId.OpenId
		}
		if u.Name != nil {
			ev.Name = *u.Name
		}
		if ev.OpenID != "" && ev.Name != "" {
			c.remember(ev.OpenID, ev.Name)
		}
		if ev.Name == "" {
			ev.Name = ev.OpenID
		}
		if ev.OpenID == c.botOpenID {
			continue
		}
		c.log.Debug().Str("kind", string(kind)).Str("chat", ev.ChatID).Str("user", ev.Name).Msg("Member event")
		if c.onMember != nil {
			c.onMember(ev)
		}
	}
}

func (c *Client) remember(openID, name string) {
	c.names.Add(openID, name)
	c.ids.Add(strings.ToLower(name), openID)
}

// resolveName returns the display name for openID, loading the chat roster on a miss
func (c *Client) resolveName(chatID, openID string) string {
	if openID == "" {
		return ""
	}
	if name, ok := c.names.Get(openID); ok {
		return name
	}
	if _, err := c.GetChatMembers(chatID); err != nil {
		c.log.Warn().Err(err).Str("chat", chatID).Msg("Failed to load chat members")
	}
	if name, ok := c.names.Get(openID); ok {
		return name
	}
	return openID
}

// LookupOpenID returns the open_id of a user seen under name
func (c *Client) LookupOpenID(name string) (string, bool) {
	return c.ids.Get(strings.ToLower(strings.TrimPrefix(name, "@")))
}

// parseTextContent extracts text from a text message
func parseTextContent(content string, mentionMap map[string]string) string {
	var parsed struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return ""
	}
	return replaceMentions(parsed.Text, mentionMap)
}

// parsePostContent flattens a rich text message to plain text
func parsePostContent(content string, mentionMap map[string]string) string {
	var parsed struct {
		Title   string `json:"title"`
		Content [][]struct {
			Tag    string `json:"tag"`
			Text   string `json:"text,omitempty"`
			UserID string `json:"user_id,omitempty"`
		} `json:"content"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return ""
	}

	var textParts []string
	if parsed.Title != "" {
		textParts = append(textParts, parsed.Title)
	}
	for _, line := range parsed.Content {
		var lineParts []string
		for _, elem := range line {
			switch elem.Tag {
			case "text":
				if elem.Text != "" {
					lineParts = append(lineParts, elem.Text)
				}
			case "at":
				if elem.UserID == "" {
					continue
				}
				if name, ok := mentionMap[elem.UserID]; ok {
					lineParts = append(lineParts, name)
				} else {
					lineParts = append(lineParts, "@"+elem.UserID)
				}
			}
		}
		if len(lineParts) > 0 {
			textParts = append(textParts, strings.Join(lineParts, ""))
		}
	}
	return replaceMentions(strings.Join(textParts, "\n"), mentionMap)
}

// replaceMentions replaces mention placeholders (@_user_1, ...) with names
func replaceMentions(text string, mentionMap map[string]string) string {
	for key, name := range mentionMap {
		text = strings.ReplaceAll(text, key, name)
	}
	return text
}

// SendText sends a text message to a chat
func (c *Client) SendText(ctx context.Context, chatID, text string) error {
	contentJSON, _ := json.Marshal(map[string]string{"text": text})

	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(larkim.ReceiveIdTypeChatId).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(chatID).
			MsgType(larkim.MsgTypeText).
			Content(string(contentJSON)).
			Build()).
		Build()

	resp, err := c.larkCli.Im.Message.Create(ctx, req)
	if err != nil {
		return fmt.Errorf("send message failed: %w", err)
	}
	if !resp.Success() {
		return fmt.Errorf("send message error: %s", resp.Msg)
	}

	c.log.Debug().Str("chat", chatID).Msg("Message sent")
	return nil
}

// GetChatMembers retrieves members of a chat and records their names
func (c *Client) GetChatMembers(chatID string) ([]*ChatMember, error) {
	var members []*ChatMember
	var pageToken string

	for {
		reqBuilder := larkim.NewGetChatMembersReqBuilder().
			MemberIdType("open_id").
			ChatId(chatID).
			PageSize(100)
		if pageToken != "" {
			reqBuilder = reqBuilder.PageToken(pageToken)
		}

		resp, err := c.larkCli.Im.ChatMembers.Get(context.Background(), reqBuilder.Build())
		if err != nil {
			return nil, fmt.Errorf("get chat members failed: %w", err)
		}
		if !resp.Success() {
			return nil, fmt.Errorf("get chat members error: %s", resp.Msg)
		}

		for _, item := range resp.Data.Items {
			member := &ChatMember{}
			if item.MemberId != nil {
				member.MemberID = *item.MemberId
			}
			if item.Name != nil {
				member.Name = *item.Name
			}
			if member.MemberID != "" && member.Name != "" {
				c.remember(member.MemberID, member.Name)
			}
			members = append(members, member)
		}

		if resp.Data.PageToken == nil || *resp.Data.PageToken == "" {
			break
		}
		pageToken = *resp.Data.PageToken
	}

	c.log.Debug().Int("count", len(members)).Str("chat", chatID).Msg("Loaded chat members")
	return members, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
