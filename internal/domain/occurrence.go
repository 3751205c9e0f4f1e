package domain

// Occurrence — закрытое множество доменных событий, поступающих из
// application-слоя. Fan-out делает исчерпывающий switch по Kind().
type Occurrence interface {
	Kind() OccurrenceKind
}

type OccurrenceKind string

const (
	KindNewAnswer   OccurrenceKind = "new_answer"
	KindNewComment  OccurrenceKind = "new_comment"
	KindNewVote     OccurrenceKind = "new_vote"
	KindBadgeEarned  OccurrenceKind = "badge_earned"
	KindNewMessage   OccurrenceKind = "new_message"
	KindViewerJoined OccurrenceKind = "viewer_joined"
	KindViewerLeft   OccurrenceKind = "viewer_left"
)

type NewAnswer struct {
	QuestionID    string `json:"question_id"`
	QuestionTitle string `json:"question_title"`
	AuthorID      int64  `json:"author_id"` // автор вопроса — получатель персонального уведомления
	AnswererID    int64  `json:"answerer_id"`
	AnswererName  string `json:"answerer_name"`
	Preview       string `json:"preview"`
}

func (NewAnswer) Kind() OccurrenceKind { return KindNewAnswer }

type NewComment struct {
	QuestionID    string `json:"question_id"`
	QuestionTitle string `json:"question_title"`
	AuthorID      int64  `json:"author_id"`
	CommenterID   int64  `json:"commenter_id"`
	CommenterName string `json:"commenter_name"`
	Preview       string `json:"preview"`
}

func (NewComment) Kind() OccurrenceKind { return KindNewComment }

type VoteTargetType string

const (
	VoteTargetQuestion VoteTargetType = "question"
	VoteTargetAnswer   VoteTargetType = "answer"
)

// NewVote — advisory-событие: NewCount — это подсказка для инвалидирования
// клиентского кэша, авторитетное значение клиент перечитывает из REST.
type NewVote struct {
	QuestionID string         `json:"question_id"` // комната, в которую уходит broadcast
	TargetID   string         `json:"target_id"`
	TargetType VoteTargetType `json:"target_type"`
	NewCount   int64          `json:"new_count"`

	// NotifyRecipient выставляет внешняя threshold-политика.
	NotifyRecipient bool   `json:"notify_recipient"`
	RecipientID     int64  `json:"recipient_id,omitempty"`
	RecipientText   string `json:"recipient_text,omitempty"`
}

func (NewVote) Kind() OccurrenceKind { return KindNewVote }

type BadgeEarned struct {
	UserID    int64  `json:"user_id"`
	BadgeName string `json:"badge_name"`
	BadgeTier string `json:"badge_tier"`
}

func (BadgeEarned) Kind() OccurrenceKind { return KindBadgeEarned }

type NewMessage struct {
	ConversationID string  `json:"conversation_id"`
	SenderID       int64   `json:"sender_id"`
	SenderName     string  `json:"sender_name"`
	RecipientIDs   []int64 `json:"recipient_ids"` // участники диалога без отправителя
	Preview        string  `json:"preview"`
}

func (NewMessage) Kind() OccurrenceKind { return KindNewMessage }

// ViewerJoined/ViewerLeft — application-слой сообщает о зрителе вопроса,
// отслеживаемом вне WS (SSR, старые клиенты). Уведомлений не порождают,
// только перетрансляцию presence-снапшота комнаты.
type ViewerJoined struct {
	QuestionID string `json:"question_id"`
	ViewerID   int64  `json:"viewer_id"`
}

func (ViewerJoined) Kind() OccurrenceKind { return KindViewerJoined }

type ViewerLeft struct {
	QuestionID string `json:"question_id"`
	ViewerID   int64  `json:"viewer_id"`
}

func (ViewerLeft) Kind() OccurrenceKind { return KindViewerLeft }
