package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"gymbot/internal/logger"
	"gymbot/internal/models"
	"gymbot/internal/repository"
	"gymbot/internal/training"
)

const (
	TokenStart    = "/start"
	TokenQuit     = "/quit"
	TokenShowData = "/show_data"
	TokenExport   = "/export"
	TokenDone     = "Done"
)

const (
	msgWelcome        = "Welcome! Let's do some workout!\n👇 Choose a category:"
	msgChooseCategory = "Choose a category:"
	msgChooseExercise = "Choose an exercise below:"
	msgAskName        = "What is the name of the exercise?"
	msgBye            = "Well done! See you next time!"
	msgEnded          = "The session has ended. Send /start to begin a new one."
	msgUnavailable    = "The database is not responding right now, please try again."
	msgFailed         = "Something went wrong, please try again."
)

// Catalog is the exercise catalog the machine renders choices from
type Catalog interface {
	Categories() []models.Category
	Category(code string) (models.Category, error)
	ListExercises(ctx context.Context, code string) ([]models.Exercise, error)
	CreateExercise(ctx context.Context, code, name string) (models.Exercise, error)
	GetExercise(ctx context.Context, key string) (models.Exercise, error)
}

// LogStore records parsed measurements
type LogStore interface {
	Append(ctx context.Context, exerciseKey string, m models.Measurement) (models.LogEntry, error)
}

// Prompt is the reply to one user message
type Prompt struct {
	Text    string
	Replies []string // suggested reply tokens, in display order
	Done    bool     // conversation finished, drop the keyboard
}

// genericSchema is used when an exercise's category is no longer configured
var genericSchema = []models.Field{models.FieldDuration}

// Machine drives the per-user logging conversation
type Machine struct {
	catalog Catalog
	logs    LogStore
	store   Store
	log     *logger.Logger
	locks   keyedMutex
	now     func() time.Time
}

// NewMachine создаёт машину состояний диалога
func NewMachine(catalog Catalog, logs LogStore, store Store, log *logger.Logger) *Machine {
	return &Machine{
		catalog: catalog,
		logs:    logs,
		store:   store,
		log:     log.With("service", "SessionMachine"),
		locks:   keyedMutex{locks: make(map[string]*refLock)},
		now:     time.Now,
	}
}

// HandleInput applies one user message to the session and returns the next prompt.
// Inputs for the same session are processed one at a time. The error is only set
// when the session could not be loaded or saved; the prompt is usable either way.
func (m *Machine) HandleInput(ctx context.Context, sessionID, text string) (Prompt, error) {
	unlock := m.locks.lock(sessionID)
	defer unlock()

	s, err := m.load(ctx, sessionID)
	if err != nil {
		return Prompt{Text: msgUnavailable}, err
	}

	from := s.State
	prompt := m.transition(ctx, s, strings.TrimSpace(text))
	s.UpdatedAt = m.now().UTC()

	m.log.Debug("session transition", "session_id", sessionID, "from", from, "to", s.State)

	if err := m.store.Save(ctx, s); err != nil {
		return prompt, fmt.Errorf("save session %s: %w", sessionID, err)
	}
	return prompt, nil
}

// Summary returns the current session state for display
func (m *Machine) Summary(ctx context.Context, sessionID string) (map[string]string, error) {
	unlock := m.locks.lock(sessionID)
	defer unlock()

	s, err := m.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	summary := map[string]string{"state": string(s.State)}
	if s.Category != "" {
		summary["category"] = s.Category
	}
	if s.ExerciseName != "" {
		summary["exercise"] = s.ExerciseName
	}
	if s.LastInput != "" {
		summary["last"] = s.LastInput
	}
	return summary, nil
}

func (m *Machine) load(ctx context.Context, sessionID string) (*models.Session, error) {
	s, err := m.store.Load(ctx, sessionID)
	if errors.Is(err, ErrNotFound) {
		return &models.Session{ID: sessionID, State: models.StateSelectingCategory}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	return s, nil
}

func (m *Machine) transition(ctx context.Context, s *models.Session, text string) Prompt {
	switch {
	case isCommand(text, TokenStart):
		s.Reset()
		s.State = models.StateSelectingCategory
		return m.categoryPrompt(msgWelcome)
	case isCommand(text, TokenQuit):
		s.Reset()
		s.State = models.StateEnded
		return Prompt{Text: msgBye, Done: true}
	}

	code, isCategory := m.categoryToken(text)

	switch s.State {
	case models.StateEnded:
		return Prompt{Text: msgEnded, Replies: []string{TokenStart}, Done: true}

	case models.StateSelectingCategory:
		if isCategory {
			return m.selectCategory(ctx, s, code)
		}
		return m.categoryPrompt(msgChooseCategory)

	case models.StateSelectingExercise:
		switch {
		case strings.EqualFold(text, models.NewExerciseLabel):
			s.State = models.StateCreatingExercise
			return Prompt{Text: msgAskName, Replies: []string{TokenDone}}
		case isCategory:
			return m.selectCategory(ctx, s, code)
		default:
			return m.selectExercise(ctx, s, text)
		}

	case models.StateCreatingExercise:
		switch {
		case isCategory:
			// abandon the pending name and switch category
			return m.selectCategory(ctx, s, code)
		case strings.EqualFold(text, TokenDone):
			s.State = models.StateSelectingExercise
			return m.exercisePrompt(ctx, s, msgChooseExercise)
		default:
			return m.createExercise(ctx, s, text)
		}

	case models.StateLogging:
		if strings.EqualFold(text, TokenDone) {
			s.ClearExercise()
			s.State = models.StateSelectingExercise
			return m.exercisePrompt(ctx, s, msgChooseExercise)
		}
		return m.logMeasurement(ctx, s, text)

	default:
		m.log.Warn("unknown session state, restarting", "session_id", s.ID, "state", s.State)
		s.Reset()
		s.State = models.StateSelectingCategory
		return m.categoryPrompt(msgWelcome)
	}
}

func (m *Machine) selectCategory(ctx context.Context, s *models.Session, code string) Prompt {
	s.Reset()
	s.Category = code
	s.State = models.StateSelectingExercise
	return m.exercisePrompt(ctx, s, msgChooseExercise)
}

func (m *Machine) selectExercise(ctx context.Context, s *models.Session, text string) Prompt {
	key := models.NormalizeKey(text)
	if key == "" {
		return m.exercisePrompt(ctx, s, msgChooseExercise)
	}
	e, err := m.catalog.GetExercise(ctx, key)
	if err == nil && e.CategoryCode != s.Category {
		// only the exercises of the listed category are valid choices
		err = repository.ErrUnknownExercise
	}
	if errors.Is(err, repository.ErrUnknownExercise) {
		return m.exercisePrompt(ctx, s, fmt.Sprintf("I don't know %q. Pick one below or add a %s.", text, models.NewExerciseLabel))
	}
	if err != nil {
		return m.failure(s, err, "get exercise")
	}

	s.Exercise = e.Key
	s.ExerciseName = e.Name
	s.LastInput = ""
	s.State = models.StateLogging
	return m.loggingPrompt(s)
}

func (m *Machine) createExercise(ctx context.Context, s *models.Session, text string) Prompt {
	if err := training.ValidateExerciseName(text, m.reservedTokens()); err != nil {
		return Prompt{Text: err.Error() + "\n" + msgAskName, Replies: []string{TokenDone}}
	}

	e, err := m.catalog.CreateExercise(ctx, s.Category, text)
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrDuplicateKey):
		return Prompt{
			Text:    fmt.Sprintf("An exercise called %q already exists. Please choose a different name.", strings.TrimSpace(text)),
			Replies: []string{TokenDone},
		}
	case errors.Is(err, repository.ErrUnknownCategory):
		m.log.Warn("create exercise in unknown category", "session_id", s.ID, "category", s.Category)
		s.Reset()
		s.State = models.StateSelectingCategory
		return m.categoryPrompt("That category is no longer available. " + msgChooseCategory)
	case repository.IsRetryable(err):
		m.log.Warn("create exercise: store unavailable", "session_id", s.ID, "error", err)
		return Prompt{Text: msgUnavailable + "\n" + msgAskName, Replies: []string{TokenDone}}
	default:
		m.log.Error("create exercise failed", "session_id", s.ID, "error", err)
		return Prompt{Text: msgFailed + "\n" + msgAskName, Replies: []string{TokenDone}}
	}

	m.log.Info("exercise created", "session_id", s.ID, "exercise", e.Key, "category", e.CategoryCode)
	s.State = models.StateSelectingExercise
	return m.exercisePrompt(ctx, s, fmt.Sprintf("%s added. %s", e.Name, msgChooseExercise))
}

func (m *Machine) logMeasurement(ctx context.Context, s *models.Session, text string) Prompt {
	schema, known := m.schema(s.Category)
	hint := training.SchemaPrompt(schema)
	if !known {
		hint = training.SchemaPrompt(nil)
	}

	meas, err := training.Parse(schema, text)
	if err != nil {
		return Prompt{
			Text:    fmt.Sprintf("I could not read %q.\nLog the exercise:\n%s", text, hint),
			Replies: m.loggingReplies(s),
		}
	}

	entry, err := m.logs.Append(ctx, s.Exercise, meas)
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrSchemaMismatch):
		m.log.Error("parsed measurement rejected by log store",
			"session_id", s.ID, "exercise", s.Exercise, "input", text, "error", err)
		return Prompt{
			Text:    "That entry does not fit this exercise and was not saved.\nLog the exercise:\n" + hint,
			Replies: m.loggingReplies(s),
		}
	case errors.Is(err, repository.ErrUnknownCategory):
		return Prompt{
			Text:    fmt.Sprintf("The category of %s is not configured any more, so the entry was not saved.", s.ExerciseName),
			Replies: []string{TokenDone},
		}
	case errors.Is(err, repository.ErrUnknownExercise):
		s.ClearExercise()
		s.State = models.StateSelectingExercise
		return m.exercisePrompt(ctx, s, "That exercise no longer exists. "+msgChooseExercise)
	case repository.IsRetryable(err):
		m.log.Warn("append log: store unavailable", "session_id", s.ID, "error", err)
		return Prompt{Text: msgUnavailable + " The entry was not saved.", Replies: m.loggingReplies(s)}
	default:
		m.log.Error("append log failed", "session_id", s.ID, "error", err)
		return Prompt{Text: msgFailed + " The entry was not saved.", Replies: m.loggingReplies(s)}
	}

	if !known {
		m.log.Warn("logged entry for unconfigured category", "session_id", s.ID, "category", s.Category)
	}
	s.LastInput = training.FormatInput(schema, meas)
	return Prompt{
		Text:    training.FormatEntry(s.ExerciseName, schema, entry.Measurement),
		Replies: []string{s.LastInput, TokenDone},
	}
}

func (m *Machine) categoryPrompt(text string) Prompt {
	categories := m.catalog.Categories()
	replies := make([]string, 0, len(categories))
	for _, c := range categories {
		replies = append(replies, c.Token())
	}
	return Prompt{Text: text, Replies: replies}
}

func (m *Machine) exercisePrompt(ctx context.Context, s *models.Session, text string) Prompt {
	exercises, err := m.catalog.ListExercises(ctx, s.Category)
	if errors.Is(err, repository.ErrUnknownCategory) {
		s.Reset()
		s.State = models.StateSelectingCategory
		return m.categoryPrompt("I don't know that category. " + msgChooseCategory)
	}
	if err != nil {
		return m.failure(s, err, "list exercises")
	}

	replies := make([]string, 0, len(exercises))
	for _, e := range exercises {
		replies = append(replies, e.Name)
	}
	return Prompt{Text: text, Replies: replies}
}

func (m *Machine) loggingPrompt(s *models.Session) Prompt {
	schema, known := m.schema(s.Category)
	text := fmt.Sprintf("%s?\nLog the exercise:\n%s", s.ExerciseName, training.SchemaPrompt(schema))
	if !known {
		text = fmt.Sprintf("%s?\nCategory %q is not configured, I can only take a single number.\nLog the exercise:\n%s",
			s.ExerciseName, s.Category, training.SchemaPrompt(nil))
	}
	return Prompt{Text: text, Replies: m.loggingReplies(s)}
}

// loggingReplies offers this session's previous entry for one-tap repeats.
// The log is shared by all users, so stored entries are never suggested.
func (m *Machine) loggingReplies(s *models.Session) []string {
	if s.LastInput != "" {
		return []string{s.LastInput, TokenDone}
	}
	return []string{TokenDone}
}

// failure keeps the state and asks the user to repeat the last message
func (m *Machine) failure(s *models.Session, err error, op string) Prompt {
	if repository.IsRetryable(err) {
		m.log.Warn(op+": store unavailable", "session_id", s.ID, "error", err)
		return Prompt{Text: msgUnavailable, Replies: m.retryReplies(s)}
	}
	m.log.Error(op+" failed", "session_id", s.ID, "error", err)
	return Prompt{Text: msgFailed, Replies: m.retryReplies(s)}
}

func (m *Machine) retryReplies(s *models.Session) []string {
	if s.Category == "" {
		return m.categoryPrompt("").Replies
	}
	return []string{"/" + s.Category}
}

func (m *Machine) schema(code string) ([]models.Field, bool) {
	c, err := m.catalog.Category(code)
	if err != nil {
		return genericSchema, false
	}
	return c.Fields, true
}

// categoryToken maps "/cardio" (or "/cardio@botname") to a configured category code
func (m *Machine) categoryToken(text string) (string, bool) {
	if !strings.HasPrefix(text, "/") {
		return "", false
	}
	cmd := strings.TrimPrefix(text, "/")
	if i := strings.Index(cmd, "@"); i >= 0 {
		cmd = cmd[:i]
	}
	code := models.NormalizeKey(cmd)
	if _, err := m.catalog.Category(code); err != nil {
		return "", false
	}
	return code, true
}

func (m *Machine) reservedTokens() []string {
	reserved := []string{models.NewExerciseLabel, TokenDone, TokenStart, TokenQuit, TokenShowData, TokenExport}
	for _, c := range m.catalog.Categories() {
		reserved = append(reserved, c.Token())
	}
	return reserved
}

// isCommand matches "/quit" and "/quit@botname"
func isCommand(text, command string) bool {
	text = strings.ToLower(text)
	return text == command || strings.HasPrefix(text, command+"@")
}

// keyedMutex serialises work per session id
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refLock
}

type refLock struct {
	sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &refLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
