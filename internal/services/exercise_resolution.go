package services

import (
  "context"
  "encoding/json"
  "errors"
  "fmt"
  "regexp"
  "strings"
  "sync"

  "github.com/google/uuid"
  "golang.org/x/sync/errgroup"

  "github.com/yungbote/liftlog-backend/internal/apierr"
  "github.com/yungbote/liftlog-backend/internal/logger"
  "github.com/yungbote/liftlog-backend/internal/repos"
  "github.com/yungbote/liftlog-backend/internal/requestdata"
  "github.com/yungbote/liftlog-backend/internal/types"
)

const (
  defaultMaxIterations     = 20
  defaultSearchThreshold   = 0.35
  defaultFallbackThreshold = 0.5
  defaultSearchLimit       = 8

  defaultMuscleGroup  = "Full Body"
  defaultExerciseType = "compound"
  defaultEquipment    = "other"
)

// ExerciseResolver maps every distinct raw exercise name in a workout to a
// canonical exercise id, creating canonical rows when nothing matches. The
// returned map is keyed by normalized name and is total: one entry per
// distinct name, always.
type ExerciseResolver interface {
  Resolve(ctx context.Context, names []string, userID uuid.UUID) (map[string]types.ExerciseResolution, error)
}

type exerciseResolver struct {
  log               *logger.Logger
  ai                OpenAIClient
  exerciseRepo      repos.ExerciseRepo
  cache             ResolutionCache
  model             string
  maxIterations     int
  searchThreshold   float64
  fallbackThreshold float64
}

type ExerciseResolverConfig struct {
  Model             string
  MaxIterations     int
  SearchThreshold   float64
  FallbackThreshold float64
}

func NewExerciseResolver(log *logger.Logger, ai OpenAIClient, exerciseRepo repos.ExerciseRepo, cache ResolutionCache, cfg ExerciseResolverConfig) ExerciseResolver {
  if cfg.MaxIterations <= 0 {
    cfg.MaxIterations = defaultMaxIterations
  }
  if cfg.SearchThreshold <= 0 {
    cfg.SearchThreshold = defaultSearchThreshold
  }
  if cfg.FallbackThreshold <= 0 {
    cfg.FallbackThreshold = defaultFallbackThreshold
  }
  return &exerciseResolver{
    log:               log.With("service", "ExerciseResolver"),
    ai:                ai,
    exerciseRepo:      exerciseRepo,
    cache:             cache,
    model:             cfg.Model,
    maxIterations:     cfg.MaxIterations,
    searchThreshold:   cfg.SearchThreshold,
    fallbackThreshold: cfg.FallbackThreshold,
  }
}

// NormalizeExerciseName is the dedup key for raw exercise names:
// lowercase with runs of whitespace collapsed to single spaces.
func NormalizeExerciseName(name string) string {
  return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

func titleCaseName(name string) string {
  fields := strings.Fields(name)
  for i, f := range fields {
    r := []rune(f)
    if len(r) > 0 {
      fields[i] = strings.ToUpper(string(r[0])) + strings.ToLower(string(r[1:]))
    }
  }
  return strings.Join(fields, " ")
}

// agentState is the per-request mutable state of one resolution run. Tool
// calls within a turn execute concurrently, so writes go through the mutex.
type agentState struct {
  mu          sync.Mutex
  userID      uuid.UUID
  names       map[string]string // normalized -> display form
  resolutions map[string]types.ExerciseResolution
  createdIDs  map[uuid.UUID]bool
  submitted   bool
}

func (s *agentState) record(normalized string, res types.ExerciseResolution) {
  s.mu.Lock()
  defer s.mu.Unlock()
  s.resolutions[normalized] = res
}

func (s *agentState) markCreated(id uuid.UUID) {
  s.mu.Lock()
  defer s.mu.Unlock()
  s.createdIDs[id] = true
}

func (s *agentState) wasCreatedByTool(id uuid.UUID) bool {
  s.mu.Lock()
  defer s.mu.Unlock()
  return s.createdIDs[id]
}

func (s *agentState) unresolved() []string {
  s.mu.Lock()
  defer s.mu.Unlock()
  var out []string
  for normalized := range s.names {
    if _, ok := s.resolutions[normalized]; !ok {
      out = append(out, normalized)
    }
  }
  return out
}

func (s *agentState) done() bool {
  s.mu.Lock()
  defer s.mu.Unlock()
  return s.submitted && len(s.resolutions) == len(s.names)
}

func (r *exerciseResolver) Resolve(ctx context.Context, names []string, userID uuid.UUID) (map[string]types.ExerciseResolution, error) {
  correlationID := requestdata.CorrelationID(ctx)
  log := r.log.With("correlation_id", correlationID)

  state := &agentState{
    userID:      userID,
    names:       map[string]string{},
    resolutions: map[string]types.ExerciseResolution{},
    createdIDs:  map[uuid.UUID]bool{},
  }
  for _, name := range names {
    normalized := NormalizeExerciseName(name)
    if normalized == "" {
      continue
    }
    if _, ok := state.names[normalized]; !ok {
      state.names[normalized] = strings.Join(strings.Fields(name), " ")
    }
  }
  if len(state.names) == 0 {
    return map[string]types.ExerciseResolution{}, nil
  }

  cacheHits := 0
  if r.cache != nil {
    for normalized := range state.names {
      res, err := r.cache.Get(ctx, normalized)
      if err != nil {
        log.Warn("Resolution cache read failed", "name", normalized, "error", err)
        continue
      }
      if res != nil {
        res.WasCreated = false
        state.resolutions[normalized] = *res
        cacheHits++
      }
    }
  }

  pending := state.unresolved()
  if len(pending) > 0 {
    summary, err := r.runAgent(ctx, log, state)
    if err != nil {
      return nil, err
    }
    if !state.submitted && summary != "" {
      r.resolutionsFromSummary(state, summary)
    }
  }

  for _, normalized := range state.unresolved() {
    display := state.names[normalized]
    log.Warn("Exercise left unresolved by agent, falling back", "name", display)
    res, err := r.fallbackResolve(ctx, state, display)
    if err != nil {
      return nil, apierr.ParseFailed(fmt.Errorf("fallback resolution for %q: %w", display, err))
    }
    state.record(normalized, *res)
  }

  if len(state.resolutions) != len(state.names) {
    return nil, apierr.ParseFailed(fmt.Errorf("resolution map incomplete: %d of %d names", len(state.resolutions), len(state.names)))
  }

  if r.cache != nil {
    for normalized, res := range state.resolutions {
      if err := r.cache.Set(ctx, normalized, res); err != nil {
        log.Warn("Resolution cache write failed", "name", normalized, "error", err)
      }
    }
  }

  log.Info("Exercise names resolved",
    "total", len(state.names),
    "cache_hits", cacheHits,
    "created", len(state.createdIDs),
  )
  return state.resolutions, nil
}

const resolverSystemPrompt = "You resolve raw, user-typed exercise names to canonical exercise records. " +
  "For every name you are given: use search_exercises to find candidates, pick the match that refers to the same movement, " +
  "and only call create_exercise when no candidate does. Abbreviations, plurals and equipment-implied variants of an existing " +
  "exercise are matches, not new exercises. When every name is handled, call submit_resolutions exactly once with one entry per name."

func (r *exerciseResolver) runAgent(ctx context.Context, log *logger.Logger, state *agentState) (string, error) {
  pending := state.unresolved()
  display := make([]string, 0, len(pending))
  for _, normalized := range pending {
    display = append(display, state.names[normalized])
  }

  messages := []ChatMessage{
    {Role: "system", Content: resolverSystemPrompt},
    {Role: "user", Content: "Resolve these exercise names:\n- " + strings.Join(display, "\n- ")},
  }
  tools := r.toolDefinitions()

  for iteration := 0; iteration < r.maxIterations; iteration++ {
    msg, err := r.ai.ChatTools(ctx, r.model, messages, tools)
    if err != nil {
      return "", apierr.ParseFailed(fmt.Errorf("resolution agent model call: %w", err))
    }
    messages = append(messages, *msg)

    if len(msg.ToolCalls) == 0 {
      log.Debug("Resolution agent finished without tool calls", "iterations", iteration+1)
      return msg.Content, nil
    }

    // Tool calls in one turn are independent; run them concurrently and
    // join before the next model turn.
    results := make([]ChatMessage, len(msg.ToolCalls))
    g, gctx := errgroup.WithContext(ctx)
    for i, tc := range msg.ToolCalls {
      g.Go(func() error {
        results[i] = ChatMessage{
          Role:       "tool",
          Content:    r.executeToolCall(gctx, log, state, tc),
          ToolCallID: tc.ID,
        }
        return nil
      })
    }
    _ = g.Wait()
    if ctx.Err() != nil {
      return "", apierr.ParseFailed(ctx.Err())
    }
    messages = append(messages, results...)

    if state.done() {
      log.Debug("Resolution agent submitted resolutions", "iterations", iteration+1)
      return "", nil
    }
  }

  return "", apierr.ParseFailed(fmt.Errorf("resolution agent exceeded %d iterations", r.maxIterations))
}

func (r *exerciseResolver) toolDefinitions() []ToolDefinition {
  return []ToolDefinition{
    {
      Name:        "search_exercises",
      Description: "Fuzzy-search canonical exercises by name. Returns candidates with ids and similarity scores.",
      Parameters: map[string]any{
        "type": "object",
        "properties": map[string]any{
          "query": map[string]any{"type": "string"},
          "limit": map[string]any{"type": "integer"},
        },
        "required":             []string{"query"},
        "additionalProperties": false,
      },
    },
    {
      Name:        "create_exercise",
      Description: "Create a canonical exercise when no existing one matches. Returns the existing record instead if the name or an alias already exists.",
      Parameters: map[string]any{
        "type": "object",
        "properties": map[string]any{
          "name":         map[string]any{"type": "string"},
          "muscle_group": map[string]any{"type": "string"},
          "type":         map[string]any{"type": "string"},
          "equipment":    map[string]any{"type": "string"},
        },
        "required":             []string{"name"},
        "additionalProperties": false,
      },
    },
    {
      Name:        "submit_resolutions",
      Description: "Submit the final resolution for every requested name. Call exactly once, after all names are handled.",
      Parameters: map[string]any{
        "type": "object",
        "properties": map[string]any{
          "resolutions": map[string]any{
            "type": "array",
            "items": map[string]any{
              "type": "object",
              "properties": map[string]any{
                "name":        map[string]any{"type": "string"},
                "exercise_id": map[string]any{"type": "string"},
                "status":      map[string]any{"type": "string", "enum": []string{"matched", "created"}},
              },
              "required":             []string{"name", "exercise_id", "status"},
              "additionalProperties": false,
            },
          },
        },
        "required":             []string{"resolutions"},
        "additionalProperties": false,
      },
    },
  }
}

// executeToolCall runs one tool call and always returns a payload for the
// model. Tool errors become an error payload the agent can react to; they
// never abort the loop.
func (r *exerciseResolver) executeToolCall(ctx context.Context, log *logger.Logger, state *agentState, tc ChatToolCall) string {
  var payload any
  var err error

  switch tc.Function.Name {
  case "search_exercises":
    payload, err = r.toolSearchExercises(ctx, tc.Function.Arguments)
  case "create_exercise":
    payload, err = r.toolCreateExercise(ctx, state, tc.Function.Arguments)
  case "submit_resolutions":
    payload, err = r.toolSubmitResolutions(state, tc.Function.Arguments)
  default:
    err = fmt.Errorf("unknown tool %q", tc.Function.Name)
  }

  if err != nil {
    log.Warn("Resolution agent tool call failed", "tool", tc.Function.Name, "error", err)
    payload = map[string]any{"error": err.Error()}
  }

  raw, marshalErr := json.Marshal(payload)
  if marshalErr != nil {
    return `{"error":"failed to encode tool result"}`
  }
  return string(raw)
}

func (r *exerciseResolver) toolSearchExercises(ctx context.Context, arguments string) (any, error) {
  var args struct {
    Query string `json:"query"`
    Limit int    `json:"limit"`
  }
  if err := json.Unmarshal([]byte(arguments), &args); err != nil {
    return nil, fmt.Errorf("invalid search_exercises arguments: %w", err)
  }
  if strings.TrimSpace(args.Query) == "" {
    return nil, errors.New("search_exercises requires a non-empty query")
  }
  if args.Limit <= 0 || args.Limit > 25 {
    args.Limit = defaultSearchLimit
  }

  matches, err := r.exerciseRepo.SearchByName(ctx, nil, args.Query, r.searchThreshold, args.Limit)
  if err != nil {
    return nil, err
  }

  out := make([]map[string]any, 0, len(matches))
  for _, m := range matches {
    out = append(out, map[string]any{
      "id":           m.Exercise.ID.String(),
      "name":         m.Exercise.Name,
      "muscle_group": m.Exercise.MuscleGroup,
      "type":         m.Exercise.Type,
      "equipment":    m.Exercise.Equipment,
      "similarity":   Round2(m.Similarity),
    })
  }
  return map[string]any{"results": out}, nil
}

func (r *exerciseResolver) toolCreateExercise(ctx context.Context, state *agentState, arguments string) (any, error) {
  var args struct {
    Name        string `json:"name"`
    MuscleGroup string `json:"muscle_group"`
    Type        string `json:"type"`
    Equipment   string `json:"equipment"`
  }
  if err := json.Unmarshal([]byte(arguments), &args); err != nil {
    return nil, fmt.Errorf("invalid create_exercise arguments: %w", err)
  }
  if strings.TrimSpace(args.Name) == "" {
    return nil, errors.New("create_exercise requires a non-empty name")
  }

  exercise, created, err := r.createCanonical(ctx, state, args.Name, args.MuscleGroup, args.Type, args.Equipment)
  if err != nil {
    return nil, err
  }
  return map[string]any{
    "id":             exercise.ID.String(),
    "name":           exercise.Name,
    "created":        created,
    "already_exists": !created,
  }, nil
}

// createCanonical is the shared create path for the agent tool and the
// deterministic fallback: exact and alias lookups first, metadata inference
// for missing fields, then insert (duplicate conflicts re-fetch in the repo).
func (r *exerciseResolver) createCanonical(ctx context.Context, state *agentState, rawName, muscleGroup, exerciseType, equipment string) (*types.Exercise, bool, error) {
  name := titleCaseName(rawName)

  existing, err := r.exerciseRepo.GetByExactName(ctx, nil, name)
  if err != nil {
    return nil, false, err
  }
  if existing != nil {
    return existing, false, nil
  }
  existing, err = r.exerciseRepo.GetByAlias(ctx, nil, name)
  if err != nil {
    return nil, false, err
  }
  if existing != nil {
    return existing, false, nil
  }

  if muscleGroup == "" || exerciseType == "" || equipment == "" {
    inferredGroup, inferredType, inferredEquipment := r.inferExerciseMetadata(ctx, name)
    if muscleGroup == "" {
      muscleGroup = inferredGroup
    }
    if exerciseType == "" {
      exerciseType = inferredType
    }
    if equipment == "" {
      equipment = inferredEquipment
    }
  }

  userID := state.userID
  exercise := &types.Exercise{
    Name:        name,
    MuscleGroup: muscleGroup,
    Type:        exerciseType,
    Equipment:   equipment,
  }
  if userID != uuid.Nil {
    exercise.CreatedBy = &userID
  }

  saved, err := r.exerciseRepo.Create(ctx, nil, exercise)
  if err != nil {
    return nil, false, err
  }
  created := saved == exercise
  if created {
    state.markCreated(saved.ID)
  }
  return saved, created, nil
}

func (r *exerciseResolver) inferExerciseMetadata(ctx context.Context, name string) (string, string, string) {
  schema := map[string]any{
    "type": "object",
    "properties": map[string]any{
      "muscle_group": map[string]any{"type": "string"},
      "type":         map[string]any{"type": "string", "enum": []string{"compound", "isolation", "cardio", "mobility"}},
      "equipment":    map[string]any{"type": "string"},
    },
    "required":             []string{"muscle_group", "type", "equipment"},
    "additionalProperties": false,
  }

  obj, err := r.ai.GenerateJSON(ctx, r.model,
    "You classify strength and conditioning exercises.",
    fmt.Sprintf("Classify the exercise %q: primary muscle group, movement type, and equipment used.", name),
    "exercise_metadata",
    schema,
  )
  if err != nil {
    r.log.Warn("Exercise metadata inference failed, using defaults", "name", name, "error", err)
    return defaultMuscleGroup, defaultExerciseType, defaultEquipment
  }

  muscleGroup, _ := obj["muscle_group"].(string)
  exerciseType, _ := obj["type"].(string)
  equipment, _ := obj["equipment"].(string)
  if muscleGroup == "" {
    muscleGroup = defaultMuscleGroup
  }
  if exerciseType == "" {
    exerciseType = defaultExerciseType
  }
  if equipment == "" {
    equipment = defaultEquipment
  }
  return muscleGroup, exerciseType, equipment
}

func (r *exerciseResolver) toolSubmitResolutions(state *agentState, arguments string) (any, error) {
  var args struct {
    Resolutions []struct {
      Name       string `json:"name"`
      ExerciseID string `json:"exercise_id"`
      Status     string `json:"status"`
    } `json:"resolutions"`
  }
  if err := json.Unmarshal([]byte(arguments), &args); err != nil {
    return nil, fmt.Errorf("invalid submit_resolutions arguments: %w", err)
  }
  if len(args.Resolutions) == 0 {
    return nil, errors.New("submit_resolutions requires at least one resolution")
  }

  received, skipped := 0, 0
  var invalid []string
  for _, entry := range args.Resolutions {
    normalized := NormalizeExerciseName(entry.Name)
    state.mu.Lock()
    display, known := state.names[normalized]
    state.mu.Unlock()
    if !known {
      skipped++
      continue
    }
    id, err := uuid.Parse(entry.ExerciseID)
    if err != nil {
      invalid = append(invalid, entry.Name)
      continue
    }
    state.record(normalized, types.ExerciseResolution{
      ExerciseID:   id,
      ExerciseName: display,
      WasCreated:   entry.Status == "created" || state.wasCreatedByTool(id),
    })
    received++
  }

  if len(invalid) > 0 {
    return nil, fmt.Errorf("invalid exercise ids for: %s", strings.Join(invalid, ", "))
  }

  state.mu.Lock()
  state.submitted = true
  state.mu.Unlock()
  return map[string]any{"ok": true, "received": received, "skipped": skipped}, nil
}

// summaryLineRe matches the legacy free-text summary format
// "Bench Press -> 8c7b... (matched)". Kept as a compatibility path for
// agent runs that end without calling submit_resolutions.
var summaryLineRe = regexp.MustCompile(`(?m)^\s*[-*]?\s*(.+?)\s*->\s*([0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12})\s*\((matched|created)\)\s*$`)

func (r *exerciseResolver) resolutionsFromSummary(state *agentState, summary string) {
  for _, m := range summaryLineRe.FindAllStringSubmatch(summary, -1) {
    normalized := NormalizeExerciseName(m[1])
    state.mu.Lock()
    display, known := state.names[normalized]
    _, already := state.resolutions[normalized]
    state.mu.Unlock()
    if !known || already {
      continue
    }
    id, err := uuid.Parse(m[2])
    if err != nil {
      continue
    }
    state.record(normalized, types.ExerciseResolution{
      ExerciseID:   id,
      ExerciseName: display,
      WasCreated:   m[3] == "created" || state.wasCreatedByTool(id),
    })
  }
}

// fallbackResolve guarantees totality for one name: a stricter direct
// search first, then a forced create.
func (r *exerciseResolver) fallbackResolve(ctx context.Context, state *agentState, display string) (*types.ExerciseResolution, error) {
  matches, err := r.exerciseRepo.SearchByName(ctx, nil, display, r.fallbackThreshold, 1)
  if err == nil && len(matches) > 0 {
    best := matches[0]
    for _, m := range matches[1:] {
      if m.Similarity > best.Similarity {
        best = m
      }
    }
    return &types.ExerciseResolution{
      ExerciseID:   best.Exercise.ID,
      ExerciseName: display,
      WasCreated:   false,
    }, nil
  }
  if err != nil {
    r.log.Warn("Fallback search failed, forcing create", "name", display, "error", err)
  }

  exercise, created, err := r.createCanonical(ctx, state, display, "", "", "")
  if err != nil {
    return nil, err
  }
  return &types.ExerciseResolution{
    ExerciseID:   exercise.ID,
    ExerciseName: display,
    WasCreated:   created,
  }, nil
}
