package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/OpenVisa/VisaFlow/internal/genai"
	"github.com/OpenVisa/VisaFlow/internal/models"
	"github.com/OpenVisa/VisaFlow/internal/store"
	"github.com/openai/openai-go"
)

const (
	// MinUserTurnsForMatching is the default number of user turns collected
	// before form matching kicks in. Matching on a single "hi" wastes calls
	// and produces garbage shortlists.
	MinUserTurnsForMatching = 6

	// maxContextMessages bounds how much history is replayed into a
	// consultation call.
	maxContextMessages = 30
)

// ConversationFlow is the session state machine. It owns every transition
// between the conversational states and delegates the judgment calls to the
// matcher, validator, corrector, and question generator.
type ConversationFlow struct {
	st           store.Store
	genaiClient  genai.ClientInterface
	matcher      *FormMatcher
	validator    *AnswerValidator
	corrector    *CorrectionDetector
	questions    *QuestionGenerator
	minUserTurns int
}

// Opts holds the configuration for a ConversationFlow.
type Opts struct {
	// MinUserTurns is the number of user turns collected before form
	// matching kicks in.
	MinUserTurns int
}

// Option configures flow Opts.
type Option func(*Opts)

// WithMinUserTurns overrides how many user turns are collected before the
// matcher runs. Values below one are ignored.
func WithMinUserTurns(n int) Option {
	return func(o *Opts) {
		if n >= 1 {
			o.MinUserTurns = n
		}
	}
}

// NewConversationFlow wires a conversation flow over the given store and
// reasoning client.
func NewConversationFlow(st store.Store, genaiClient genai.ClientInterface, opts ...Option) *ConversationFlow {
	cfg := Opts{MinUserTurns: MinUserTurnsForMatching}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &ConversationFlow{
		st:           st,
		genaiClient:  genaiClient,
		matcher:      NewFormMatcher(genaiClient),
		validator:    NewAnswerValidator(genaiClient),
		corrector:    NewCorrectionDetector(genaiClient),
		questions:    NewQuestionGenerator(genaiClient),
		minUserTurns: cfg.MinUserTurns,
	}
}

// ProcessMessage runs one turn of the conversation: load the session, append
// the user message, dispatch on state, persist, and respond. Store failures
// are fatal for the turn; reasoning failures are absorbed by the components.
func (f *ConversationFlow) ProcessMessage(ctx context.Context, sessionID, message string) (*models.ChatResponse, error) {
	session, err := f.st.LoadSession(sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}
	session.AppendUser(message)
	slog.Debug("ConversationFlow.ProcessMessage: dispatching",
		"sessionID", sessionID, "state", session.State, "userTurns", session.UserTurnCount())

	var resp *models.ChatResponse
	switch session.State {
	case models.StateChatting:
		resp, err = f.handleChatting(ctx, session)
	case models.StateAwaitingConfirmation:
		resp, err = f.handleAwaitingConfirmation(ctx, session)
	case models.StateFormMatched:
		resp, err = f.handleFormMatched(ctx, session, message)
	case models.StateFillingForm:
		resp, err = f.handleFillingForm(ctx, session, message)
	case models.StateCompleted:
		resp, err = f.handleCompleted(ctx, session, message)
	default:
		slog.Warn("ConversationFlow.ProcessMessage: unknown state, resetting", "sessionID", sessionID, "state", session.State)
		session.Reset()
		resp, err = f.handleChatting(ctx, session)
	}
	if err != nil {
		return nil, err
	}

	session.AppendAssistant(resp.Message)
	if err := f.saveSession(session); err != nil {
		return nil, err
	}
	return resp, nil
}

// handleChatting covers the consultation phase: greet on the first turn,
// converse freely, and start matching once enough user turns accumulated.
func (f *ConversationFlow) handleChatting(ctx context.Context, session *models.Session) (*models.ChatResponse, error) {
	if session.UserTurnCount() == 1 {
		return f.respond(session,
			"Hello! I'm your visa application assistant. I can help you find the right visa form and fill it out step by step. Tell me about your travel plans!"), nil
	}

	if session.UserTurnCount() < f.minUserTurns {
		return f.respond(session, f.consult(ctx, session)), nil
	}

	forms, err := f.st.ListForms()
	if err != nil {
		return nil, fmt.Errorf("failed to list forms: %w", err)
	}
	decision := f.matcher.Match(ctx, session, forms)
	return f.applyMatchDecision(ctx, session, decision)
}

// applyMatchDecision turns a match decision into a state transition and reply.
func (f *ConversationFlow) applyMatchDecision(ctx context.Context, session *models.Session, decision models.MatchDecision) (*models.ChatResponse, error) {
	switch decision.Type {
	case models.MatchSingle:
		session.State = models.StateFormMatched
		session.MatchedFormID = decision.Form.FormID
		session.RecommendedForm = decision.Form
		session.CurrentFieldIndex = 0
		session.Answers = map[string]models.Answer{}
		message := fmt.Sprintf("Great news! I found the perfect form for you: %s, a %s visa for %s. Would you like to start filling it out? Say 'Yes' to begin!",
			decision.Form.Title, decision.Form.VisaType, decision.Form.Country)

		resp := f.respond(session, message)
		resp.IsFormReady = true
		resp.MatchedForm = decision.Form.Summary()
		return resp, nil

	case models.MatchMultiple:
		recommended, message := f.matcher.Recommend(ctx, decision.Shortlist, session.History)
		session.State = models.StateAwaitingConfirmation
		session.MultipleForms = decision.Shortlist
		session.RecommendedForm = recommended
		session.MatchedFormID = recommended.FormID

		resp := f.respond(session, message)
		resp.MatchedForm = recommended.Summary()
		resp.MultipleForms = decision.Shortlist
		return resp, nil

	case models.MatchOffTopic:
		return f.respond(session, decision.Message), nil

	default: // MatchNone
		message := decision.Message
		if len(decision.MissingInfo) > 0 {
			message += "\n\nTo help you better, could you tell me:\n"
			for _, q := range decision.MissingInfo {
				message += "- " + q + "\n"
			}
		}
		return f.respond(session, strings.TrimRight(message, "\n")), nil
	}
}

// handleAwaitingConfirmation resolves a multi-form recommendation. An
// ambiguous reply keeps the session here and converses about the choice
// instead of throwing the shortlist away.
func (f *ConversationFlow) handleAwaitingConfirmation(ctx context.Context, session *models.Session) (*models.ChatResponse, error) {
	if session.RecommendedForm == nil {
		slog.Warn("ConversationFlow.handleAwaitingConfirmation: no recommended form, restarting", "sessionID", session.SessionID)
		session.Reset()
		return f.respond(session, "Something went wrong with my recommendation. Let's start fresh: tell me about your travel plans!"), nil
	}

	latest := latestUserMessage(session)
	switch ClassifyIntent(latest) {
	case IntentAffirmative:
		form, err := f.st.GetForm(session.RecommendedForm.FormID)
		if err != nil {
			return nil, fmt.Errorf("failed to load form %s: %w", session.RecommendedForm.FormID, err)
		}
		if form == nil {
			form = session.RecommendedForm
		}
		session.State = models.StateFormMatched
		session.MatchedFormID = form.FormID
		session.RecommendedForm = form
		session.MultipleForms = nil
		session.CurrentFieldIndex = 0
		session.Answers = map[string]models.Answer{}

		message := fmt.Sprintf("Excellent choice! We'll go with %s (%s for %s). It has %d questions. Ready to start? Say 'Yes' to begin!",
			form.Title, form.VisaType, form.Country, len(form.Fields))
		resp := f.respond(session, message)
		resp.IsFormReady = true
		resp.MatchedForm = form.Summary()
		return resp, nil

	case IntentNegative:
		session.State = models.StateChatting
		session.RecommendedForm = nil
		session.MatchedFormID = ""
		session.MultipleForms = nil
		session.History = nil
		return f.respond(session,
			"No problem! Let's figure out what you actually need. Tell me more about your travel plans."), nil

	default:
		return f.respond(session, f.clarifyRecommendation(ctx, session)), nil
	}
}

// handleFormMatched confirms a single matched form before filling begins.
func (f *ConversationFlow) handleFormMatched(ctx context.Context, session *models.Session, message string) (*models.ChatResponse, error) {
	if session.RecommendedForm == nil || len(session.RecommendedForm.Fields) == 0 {
		slog.Warn("ConversationFlow.handleFormMatched: matched form missing or empty, restarting", "sessionID", session.SessionID)
		session.Reset()
		return f.respond(session, "I'm sorry, I lost track of the form we matched. Let's start again: tell me about your travel plans!"), nil
	}
	form := session.RecommendedForm

	switch ClassifyIntent(message) {
	case IntentAffirmative:
		session.State = models.StateFillingForm
		session.CurrentFieldIndex = 0
		question := f.questions.QuestionFor(ctx, form.Fields[0], 0, len(form.Fields))
		reply := fmt.Sprintf("Great! Let's begin filling the form. %s\n\nTip: Type 'help' anytime if you're unsure about a question.", question)
		return f.respond(session, reply), nil

	case IntentNegative:
		session.State = models.StateChatting
		session.RecommendedForm = nil
		session.MatchedFormID = ""
		session.History = nil
		return f.respond(session,
			"That's fine! Let's talk more about what you need so I can find a better match."), nil

	default:
		resp := f.respond(session, f.converseAboutForm(ctx, session, form))
		resp.IsFormReady = true
		resp.MatchedForm = form.Summary()
		return resp, nil
	}
}

// handleFillingForm advances the fill cursor: corrections first, then help
// requests, then validation of the answer to the current field.
func (f *ConversationFlow) handleFillingForm(ctx context.Context, session *models.Session, message string) (*models.ChatResponse, error) {
	form := session.RecommendedForm
	if form == nil || session.CurrentFieldIndex < 0 || session.CurrentFieldIndex >= len(form.Fields) {
		slog.Warn("ConversationFlow.handleFillingForm: inconsistent fill state, restarting",
			"sessionID", session.SessionID, "cursor", session.CurrentFieldIndex)
		session.Reset()
		return f.respond(session, "I'm sorry, something went wrong with your form. Let's start over: tell me about your travel plans!"), nil
	}
	field := form.Fields[session.CurrentFieldIndex]

	if len(session.Answers) > 0 {
		if correction := f.corrector.Detect(ctx, session, form, message); correction.IsCorrection {
			session.Answers[correction.Field.ID] = models.Answer{
				Label:     correction.Field.Label,
				Answer:    correction.NewAnswer,
				FieldType: correction.Field.EffectiveType(),
				Updated:   true,
			}
			question := f.questions.QuestionFor(ctx, field, session.CurrentFieldIndex, len(form.Fields))
			reply := fmt.Sprintf("Got it! I've updated your %s to \"%s\". Now, back to where we were. %s",
				correction.Field.Label, correction.NewAnswer, question)
			return f.respond(session, reply), nil
		}
	}

	if IsHelpRequest(message) {
		return f.respond(session, f.questions.HelpFor(ctx, field, message)), nil
	}

	valid, feedback := f.validator.Validate(ctx, field, message)
	if !valid {
		reply := fmt.Sprintf("%s\n\nPlease provide a valid answer. Need help? Just type 'help'!", feedback)
		return f.respond(session, reply), nil
	}

	session.Answers[field.ID] = models.Answer{
		Label:     field.Label,
		Answer:    strings.TrimSpace(message),
		FieldType: field.EffectiveType(),
	}
	session.CurrentFieldIndex++

	if session.CurrentFieldIndex >= len(form.Fields) {
		session.State = models.StateCompleted
		reply := fmt.Sprintf("Congratulations! You've completed the %s application with all %d answers recorded. You can ask me for a summary anytime, or say 'new form' to start another application.",
			form.Title, len(session.Answers))
		resp := f.respond(session, reply)
		resp.MatchedForm = form.Summary()
		return resp, nil
	}

	next := form.Fields[session.CurrentFieldIndex]
	question := f.questions.QuestionFor(ctx, next, session.CurrentFieldIndex, len(form.Fields))
	reply := fmt.Sprintf("Got it! %s\n\nNeed help? Just type 'help'!", question)
	return f.respond(session, reply), nil
}

// handleCompleted serves the post-completion state: summaries on request and
// a full reset when the user wants another form.
func (f *ConversationFlow) handleCompleted(ctx context.Context, session *models.Session, message string) (*models.ChatResponse, error) {
	if WantsNewForm(message) {
		session.Reset()
		return f.respond(session,
			"Let's start a new application! Tell me about your travel plans."), nil
	}

	formTitle := "your visa application"
	if session.RecommendedForm != nil {
		formTitle = session.RecommendedForm.Title
	}
	reply := fmt.Sprintf("Your %s is complete with %d answers recorded. Ask for a 'summary' to review them, or say 'new form' to start another application.",
		formTitle, len(session.Answers))
	resp := f.respond(session, reply)
	if session.RecommendedForm != nil {
		resp.MatchedForm = session.RecommendedForm.Summary()
	}
	return resp, nil
}

// ResetSession discards all progress and returns the session to chatting.
func (f *ConversationFlow) ResetSession(ctx context.Context, sessionID string) error {
	session, err := f.st.LoadSession(sessionID)
	if err != nil {
		return fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}
	session.Reset()
	if err := f.saveSession(session); err != nil {
		return err
	}
	slog.Info("ConversationFlow.ResetSession: session reset", "sessionID", sessionID)
	return nil
}

// Summary returns the recorded answers for a session's application.
func (f *ConversationFlow) Summary(ctx context.Context, sessionID string) (*models.SummaryResponse, error) {
	session, err := f.st.LoadSession(sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}
	if session.RecommendedForm == nil {
		return nil, models.ErrFormNotFound
	}
	answered, total, err := f.Progress(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return &models.SummaryResponse{
		SessionID:        session.SessionID,
		FormTitle:        session.RecommendedForm.Title,
		VisaType:         session.RecommendedForm.VisaType,
		Country:          session.RecommendedForm.Country,
		Answers:          session.Answers,
		AnsweredFields:   answered,
		TotalFields:      total,
		CompletionStatus: session.State,
	}, nil
}

// Progress reports answered/total counts for a filling session. Sessions
// without a matched form report zero totals.
func (f *ConversationFlow) Progress(ctx context.Context, sessionID string) (answered, total int, err error) {
	session, err := f.st.LoadSession(sessionID)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}
	if session.RecommendedForm == nil {
		return 0, 0, nil
	}
	return len(session.Answers), len(session.RecommendedForm.Fields), nil
}

// consult runs a free consultation reply over recent history, failing open
// to a canned nudge toward the facts matching needs.
func (f *ConversationFlow) consult(ctx context.Context, session *models.Session) string {
	messages := historyToMessages(session.History, maxContextMessages)
	reply, err := f.genaiClient.Complete(ctx, messages, genai.CompletionOpts{
		SystemPrompt: consultationSystemPrompt,
		Temperature:  0.7,
		MaxTokens:    300,
	})
	if err != nil {
		slog.Warn("ConversationFlow.consult: consultation call failed, using fallback", "error", err, "sessionID", session.SessionID)
		return "I'd love to help with your visa needs! Could you tell me which country you're traveling to and the purpose of your trip?"
	}
	return reply
}

// clarifyRecommendation answers an ambiguous reply in the confirmation state
// without leaving it.
func (f *ConversationFlow) clarifyRecommendation(ctx context.Context, session *models.Session) string {
	form := session.RecommendedForm
	system := fmt.Sprintf(confirmationClarifySystemPromptTemplate, form.Title, form.VisaType, form.Country)
	messages := historyToMessages(session.History, maxContextMessages)
	reply, err := f.genaiClient.Complete(ctx, messages, genai.CompletionOpts{
		SystemPrompt: system,
		Temperature:  0.7,
		MaxTokens:    250,
	})
	if err != nil {
		slog.Warn("ConversationFlow.clarifyRecommendation: call failed, using fallback", "error", err, "sessionID", session.SessionID)
		return fmt.Sprintf("I recommended %s (%s for %s). Say 'Yes' to go with it, or 'No' if you'd like to look for something else.",
			form.Title, form.VisaType, form.Country)
	}
	return reply
}

// converseAboutForm answers questions about a matched form while keeping the
// confirmation offer on the table.
func (f *ConversationFlow) converseAboutForm(ctx context.Context, session *models.Session, form *models.FormTemplate) string {
	system := fmt.Sprintf(formQuestionsSystemPromptTemplate, form.Title, form.VisaType, form.Country, len(form.Fields))
	messages := historyToMessages(session.History, maxContextMessages)
	reply, err := f.genaiClient.Complete(ctx, messages, genai.CompletionOpts{
		SystemPrompt: system,
		Temperature:  0.7,
		MaxTokens:    300,
	})
	if err != nil {
		slog.Warn("ConversationFlow.converseAboutForm: call failed, using fallback", "error", err, "sessionID", session.SessionID)
		return fmt.Sprintf("We matched %s, a %s visa for %s with %d questions. Say 'Yes' when you're ready to start filling it out!",
			form.Title, form.VisaType, form.Country, len(form.Fields))
	}
	return reply
}

// respond builds the baseline response for the session's current state.
func (f *ConversationFlow) respond(session *models.Session, message string) *models.ChatResponse {
	return &models.ChatResponse{
		SessionID: session.SessionID,
		Message:   message,
		State:     session.State,
	}
}

// saveSession persists the session, trimming history to the retention cap.
func (f *ConversationFlow) saveSession(session *models.Session) error {
	if len(session.History) > models.MaxHistoryMessages {
		session.History = session.History[len(session.History)-models.MaxHistoryMessages:]
	}
	if err := f.st.SaveSession(*session); err != nil {
		return fmt.Errorf("failed to save session %s: %w", session.SessionID, err)
	}
	return nil
}

func latestUserMessage(session *models.Session) string {
	for i := len(session.History) - 1; i >= 0; i-- {
		if session.History[i].Role == "user" {
			return session.History[i].Content
		}
	}
	return ""
}

// historyToMessages converts the most recent history entries into completion
// messages.
func historyToMessages(history []models.ConversationMessage, limit int) []openai.ChatCompletionMessageParamUnion {
	if len(history) > limit {
		history = history[len(history)-limit:]
	}
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(history))
	for _, msg := range history {
		if msg.Role == "assistant" {
			messages = append(messages, openai.AssistantMessage(msg.Content))
		} else {
			messages = append(messages, openai.UserMessage(msg.Content))
		}
	}
	return messages
}
