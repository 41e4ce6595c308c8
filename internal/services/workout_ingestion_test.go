package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/liftlog-backend/internal/apierr"
	"github.com/yungbote/liftlog-backend/internal/requestdata"
	"github.com/yungbote/liftlog-backend/internal/types"
)

type fakeWorkoutParser struct {
	result *types.ParsedWorkout
	err    error
	calls  int
}

func (f *fakeWorkoutParser) Parse(ctx context.Context, notes, weightUnit string) (*types.ParsedWorkout, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeResolver struct {
	err   error
	calls int
	// wasCreated marks normalized names to report as created.
	wasCreated map[string]bool
	resolved   map[string]types.ExerciseResolution
}

func (f *fakeResolver) Resolve(ctx context.Context, names []string, userID uuid.UUID) (map[string]types.ExerciseResolution, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := map[string]types.ExerciseResolution{}
	for _, name := range names {
		normalized := NormalizeExerciseName(name)
		out[normalized] = types.ExerciseResolution{
			ExerciseID:   uuid.New(),
			ExerciseName: name,
			WasCreated:   f.wasCreated[normalized],
		}
	}
	f.resolved = out
	return out, nil
}

type fakeWorkoutRepo struct {
	mu              sync.Mutex
	failCreate      bool
	failCreateLinks bool
	failCreateSets  bool
	workout         *types.Workout
	links           []*types.WorkoutExercise
	sets            []*types.WorkoutSet
}

func (f *fakeWorkoutRepo) Create(ctx context.Context, tx *gorm.DB, workout *types.Workout) (*types.Workout, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate {
		return nil, errors.New("insert workout failed")
	}
	workout.ID = uuid.New()
	f.workout = workout
	return workout, nil
}

func (f *fakeWorkoutRepo) CreateExercises(ctx context.Context, tx *gorm.DB, rows []*types.WorkoutExercise) ([]*types.WorkoutExercise, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreateLinks {
		return nil, errors.New("insert links failed")
	}
	for _, row := range rows {
		row.ID = uuid.New()
	}
	f.links = rows
	return rows, nil
}

func (f *fakeWorkoutRepo) CreateSets(ctx context.Context, tx *gorm.DB, rows []*types.WorkoutSet) ([]*types.WorkoutSet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreateSets {
		return nil, errors.New("insert sets failed")
	}
	for _, row := range rows {
		row.ID = uuid.New()
	}
	f.sets = rows
	return rows, nil
}

func (f *fakeWorkoutRepo) GetWithDetails(ctx context.Context, tx *gorm.DB, workoutID uuid.UUID) (*types.Workout, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.workout, nil
}

func authedContext(userID uuid.UUID) context.Context {
	return requestdata.WithRequestData(context.Background(), &requestdata.RequestData{
		UserID:        userID,
		CorrelationID: uuid.New().String(),
	})
}

func newTestIngestion(t *testing.T, parser WorkoutParser, resolver ExerciseResolver, repo *fakeWorkoutRepo) WorkoutIngestionService {
	t.Helper()
	return NewWorkoutIngestionService(newTestLogger(t), parser, resolver, repo)
}

func TestBuildFromStructuredDropsEmptySets(t *testing.T) {
	req := &types.WorkoutRequest{
		StructuredData: []types.ExerciseInput{
			{
				Name: "Bench Press",
				Sets: []types.SetInput{
					{Reps: 8, Weight: "61,2"},
					{Reps: nil, Weight: nil},
					{Reps: "", Weight: 0},
				},
			},
			{
				Name: "Ghost Exercise",
				Sets: []types.SetInput{
					{Reps: nil, Weight: nil},
					{Reps: 0, Weight: ""},
				},
			},
			{
				Name: "Squat",
				Sets: []types.SetInput{
					{Reps: 5, Weight: 100},
				},
			},
		},
	}

	parsed := buildFromStructured(req)
	if parsed == nil {
		t.Fatalf("expected parsed workout")
	}
	if len(parsed.Exercises) != 2 {
		t.Fatalf("exercise count: want=2 got=%d", len(parsed.Exercises))
	}
	if parsed.Exercises[0].Name != "Bench Press" || parsed.Exercises[1].Name != "Squat" {
		t.Fatalf("exercise order: %q, %q", parsed.Exercises[0].Name, parsed.Exercises[1].Name)
	}
	for idx, ex := range parsed.Exercises {
		if ex.OrderIndex != idx {
			t.Fatalf("order_index: want=%d got=%d", idx, ex.OrderIndex)
		}
	}
	if len(parsed.Exercises[0].Sets) != 1 {
		t.Fatalf("bench sets: want=1 got=%d", len(parsed.Exercises[0].Sets))
	}
	set := parsed.Exercises[0].Sets[0]
	if set.Weight == nil || *set.Weight != 61.2 {
		t.Fatalf("locale weight coercion: %+v", set.Weight)
	}
}

func TestBuildFromStructuredFoldsDuplicateNames(t *testing.T) {
	req := &types.WorkoutRequest{
		StructuredData: []types.ExerciseInput{
			{Name: "Bench Press", Sets: []types.SetInput{{Reps: 8, Weight: 60}}},
			{Name: "Squat", Sets: []types.SetInput{{Reps: 5, Weight: 100}}},
			{Name: "bench  press", Sets: []types.SetInput{{Reps: 6, Weight: 65}}},
		},
	}

	parsed := buildFromStructured(req)
	if len(parsed.Exercises) != 2 {
		t.Fatalf("exercise count: want=2 got=%d", len(parsed.Exercises))
	}
	bench := parsed.Exercises[0]
	if bench.Name != "Bench Press" {
		t.Fatalf("first occurrence name: got=%q", bench.Name)
	}
	if len(bench.Sets) != 2 {
		t.Fatalf("folded set count: want=2 got=%d", len(bench.Sets))
	}
	if bench.Sets[1].SetNumber != 2 || *bench.Sets[1].Reps != 6 {
		t.Fatalf("folded set numbering: %+v", bench.Sets[1])
	}
	if parsed.Exercises[1].Name != "Squat" || parsed.Exercises[1].OrderIndex != 1 {
		t.Fatalf("squat position: %+v", parsed.Exercises[1])
	}
}

func TestBuildFromStructuredAllEmptyReturnsNil(t *testing.T) {
	req := &types.WorkoutRequest{
		StructuredData: []types.ExerciseInput{
			{Name: "Bench Press", Sets: []types.SetInput{{Reps: nil, Weight: nil}}},
		},
	}
	if parsed := buildFromStructured(req); parsed != nil {
		t.Fatalf("expected nil, got %+v", parsed)
	}
}

func TestMergeAppendsNotesOnlyExercises(t *testing.T) {
	structured := &types.ParsedWorkout{
		IsWorkoutRelated: true,
		Exercises: []types.ParsedExercise{
			{Name: "Bench Press", OrderIndex: 0, Sets: []types.ParsedSet{{SetNumber: 1, Reps: f(8)}}},
			{Name: "Squat", OrderIndex: 1, Sets: []types.ParsedSet{{SetNumber: 1, Reps: f(5)}}},
		},
	}
	fromNotes := &types.ParsedWorkout{
		IsWorkoutRelated: true,
		Type:             "strength",
		Exercises: []types.ParsedExercise{
			{Name: "bench  press", OrderIndex: 0, Sets: []types.ParsedSet{{SetNumber: 1, Reps: f(10)}}},
			{Name: "Face Pull", OrderIndex: 1, Sets: []types.ParsedSet{{SetNumber: 1, Reps: f(15)}}},
		},
	}

	merged := mergeParsedWorkouts(structured, fromNotes)
	if len(merged.Exercises) != 3 {
		t.Fatalf("merged count: want=3 got=%d", len(merged.Exercises))
	}
	wantOrder := []string{"Bench Press", "Squat", "Face Pull"}
	for idx, ex := range merged.Exercises {
		if ex.Name != wantOrder[idx] {
			t.Fatalf("merged order at %d: want=%q got=%q", idx, wantOrder[idx], ex.Name)
		}
		if ex.OrderIndex != idx {
			t.Fatalf("merged order_index at %d: got=%d", idx, ex.OrderIndex)
		}
	}
	// The structured bench press wins over the notes-derived duplicate.
	if *merged.Exercises[0].Sets[0].Reps != 8 {
		t.Fatalf("structured exercise not authoritative")
	}
	if merged.Type != "strength" {
		t.Fatalf("merged type: want=strength got=%q", merged.Type)
	}
}

func TestMergeFoldsDuplicateStructuredNames(t *testing.T) {
	structured := &types.ParsedWorkout{
		IsWorkoutRelated: true,
		Exercises: []types.ParsedExercise{
			{Name: "Bench Press", OrderIndex: 0, Sets: []types.ParsedSet{{SetNumber: 1, Reps: f(8)}}},
			{Name: "bench  press", OrderIndex: 1, Sets: []types.ParsedSet{{SetNumber: 1, Reps: f(6)}}},
		},
	}
	fromNotes := &types.ParsedWorkout{
		IsWorkoutRelated: true,
		Exercises: []types.ParsedExercise{
			{Name: "BENCH PRESS", OrderIndex: 0, Sets: []types.ParsedSet{{SetNumber: 1, Reps: f(10)}}},
		},
	}

	merged := mergeParsedWorkouts(structured, fromNotes)
	if len(merged.Exercises) != 1 {
		t.Fatalf("merged count: want=1 got=%d", len(merged.Exercises))
	}
	counts := map[string]int{}
	for _, ex := range merged.Exercises {
		counts[NormalizeExerciseName(ex.Name)]++
	}
	if counts["bench press"] != 1 {
		t.Fatalf("duplicate normalized names survived the merge: %v", counts)
	}
	bench := merged.Exercises[0]
	if len(bench.Sets) != 2 {
		t.Fatalf("folded set count: want=2 got=%d", len(bench.Sets))
	}
	if bench.Sets[1].SetNumber != 2 || *bench.Sets[1].Reps != 6 {
		t.Fatalf("folded set numbering: %+v", bench.Sets[1])
	}
}

func TestNormalizeWorkoutConvertsAndFlagsGaps(t *testing.T) {
	parsed := &types.ParsedWorkout{
		IsWorkoutRelated: true,
		Exercises: []types.ParsedExercise{
			{
				Name: "Bench Press",
				Sets: []types.ParsedSet{
					{SetNumber: 1, Reps: f(8), Weight: f(135)},
					{SetNumber: 2, Reps: f(6), Weight: f(155)},
				},
			},
			{
				Name: "Sled Push",
				Sets: []types.ParsedSet{
					{SetNumber: 1, Weight: f(200), IsWarmup: true},
				},
			},
			{
				Name: "Empty",
				Sets: []types.ParsedSet{{SetNumber: 1}},
			},
		},
	}

	normalized := normalizeWorkout(parsed, types.WeightUnitLb, "Push Day")
	if normalized.Title != "Push Day" {
		t.Fatalf("title: got=%q", normalized.Title)
	}
	if len(normalized.Exercises) != 2 {
		t.Fatalf("exercise count: want=2 got=%d", len(normalized.Exercises))
	}

	bench := normalized.Exercises[0]
	if bench.HasRepGaps {
		t.Fatalf("bench should have no rep gaps")
	}
	if *bench.Sets[0].WeightKg != 61.24 || *bench.Sets[1].WeightKg != 70.31 {
		t.Fatalf("lb conversion: got %v / %v", *bench.Sets[0].WeightKg, *bench.Sets[1].WeightKg)
	}

	sled := normalized.Exercises[1]
	if !sled.HasRepGaps {
		t.Fatalf("sled push should flag rep gaps")
	}
	if sled.OrderIndex != 1 {
		t.Fatalf("reindex after drop: got=%d", sled.OrderIndex)
	}
	if !sled.Sets[0].IsWarmup {
		t.Fatalf("explicit warm-up flag must survive normalization")
	}
}

func TestIngestValidationFailureListsAllViolations(t *testing.T) {
	svc := newTestIngestion(t, &fakeWorkoutParser{}, &fakeResolver{}, &fakeWorkoutRepo{})

	_, err := svc.Ingest(authedContext(uuid.New()), &types.WorkoutRequest{WeightUnit: "stone"})
	ae := apierr.FromError(err)
	if ae == nil || ae.Code != apierr.CodeInvalid {
		t.Fatalf("error code: want=%s got=%v", apierr.CodeInvalid, err)
	}
	violations, ok := ae.Details.([]string)
	if !ok || len(violations) != 2 {
		t.Fatalf("violations: want 2, got %v", ae.Details)
	}
}

func TestIngestRejectsMismatchedUser(t *testing.T) {
	svc := newTestIngestion(t, &fakeWorkoutParser{}, &fakeResolver{}, &fakeWorkoutRepo{})

	req := &types.WorkoutRequest{
		Notes:  "Squats 5x5",
		UserID: uuid.New().String(),
	}
	_, err := svc.Ingest(authedContext(uuid.New()), req)
	ae := apierr.FromError(err)
	if ae == nil || ae.Code != apierr.CodeUnauthorized {
		t.Fatalf("error code: want=%s got=%v", apierr.CodeUnauthorized, err)
	}
}

func TestIngestStructuredOnlyPreservesOrderWithoutParser(t *testing.T) {
	parser := &fakeWorkoutParser{err: errors.New("parser must not run")}
	repo := &fakeWorkoutRepo{}
	svc := newTestIngestion(t, parser, &fakeResolver{}, repo)

	req := &types.WorkoutRequest{
		WeightUnit: "kg",
		StructuredData: []types.ExerciseInput{
			{Name: "Overhead Press", Sets: []types.SetInput{{Reps: 5, Weight: 40}}},
			{Name: "Pull Up", Sets: []types.SetInput{{Reps: 8}}},
			{Name: "Dip", Sets: []types.SetInput{{Reps: 10}}},
		},
	}
	result, err := svc.Ingest(authedContext(uuid.New()), req)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if parser.calls != 0 {
		t.Fatalf("parser ran on structured-only input")
	}
	wantOrder := []string{"Overhead Press", "Pull Up", "Dip"}
	for idx, ex := range result.Workout.Exercises {
		if ex.Name != wantOrder[idx] || ex.OrderIndex != idx {
			t.Fatalf("order at %d: %q (%d)", idx, ex.Name, ex.OrderIndex)
		}
	}
	if result.CreatedWorkout != nil || result.Metrics != nil {
		t.Fatalf("persistence ran without createWorkout")
	}
}

func TestIngestScenarioANotesOnly(t *testing.T) {
	parser := &fakeWorkoutParser{
		result: &types.ParsedWorkout{
			IsWorkoutRelated: true,
			Type:             "strength",
			Exercises: []types.ParsedExercise{
				{Name: "Bench Press", Sets: []types.ParsedSet{
					{SetNumber: 1, Reps: f(8), Weight: f(135)},
					{SetNumber: 2, Reps: f(6), Weight: f(155)},
				}},
				{Name: "Squats", Sets: []types.ParsedSet{
					{SetNumber: 1, Reps: f(10)},
					{SetNumber: 2, Reps: f(10)},
					{SetNumber: 3, Reps: f(10)},
				}},
			},
		},
	}
	svc := newTestIngestion(t, parser, &fakeResolver{}, &fakeWorkoutRepo{})

	req := &types.WorkoutRequest{
		Notes:      "Bench press 135x8, 155x6\nSquats 3x10 bodyweight",
		WeightUnit: "lb",
	}
	result, err := svc.Ingest(authedContext(uuid.New()), req)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if len(result.Workout.Exercises) != 2 {
		t.Fatalf("exercise count: want=2 got=%d", len(result.Workout.Exercises))
	}
	bench := result.Workout.Exercises[0]
	if *bench.Sets[0].WeightKg != 61.24 || *bench.Sets[1].WeightKg != 70.31 {
		t.Fatalf("bench weights: %v / %v", *bench.Sets[0].WeightKg, *bench.Sets[1].WeightKg)
	}
	squats := result.Workout.Exercises[1]
	if len(squats.Sets) != 3 {
		t.Fatalf("squat sets: want=3 got=%d", len(squats.Sets))
	}
	for _, set := range squats.Sets {
		if set.Reps == nil || *set.Reps != 10 || set.WeightKg != nil {
			t.Fatalf("squat set: %+v", set)
		}
	}
}

func TestIngestScenarioBEmptyStructuredFallsBackToNotes(t *testing.T) {
	parser := &fakeWorkoutParser{
		result: &types.ParsedWorkout{
			IsWorkoutRelated: true,
			Exercises: []types.ParsedExercise{
				{Name: "Row", Sets: []types.ParsedSet{{SetNumber: 1, Reps: f(12)}}},
			},
		},
	}
	svc := newTestIngestion(t, parser, &fakeResolver{}, &fakeWorkoutRepo{})

	req := &types.WorkoutRequest{
		Notes:      "Rows 12 reps",
		WeightUnit: "kg",
		StructuredData: []types.ExerciseInput{
			{Name: "Row", Sets: []types.SetInput{{Reps: nil, Weight: nil}}},
		},
	}
	result, err := svc.Ingest(authedContext(uuid.New()), req)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if parser.calls != 1 {
		t.Fatalf("parser calls: want=1 got=%d", parser.calls)
	}
	if len(result.Workout.Exercises) != 1 || result.Workout.Exercises[0].Name != "Row" {
		t.Fatalf("unexpected workout: %+v", result.Workout)
	}
}

func TestIngestScenarioBNoNotesIsContentRefused(t *testing.T) {
	svc := newTestIngestion(t, &fakeWorkoutParser{}, &fakeResolver{}, &fakeWorkoutRepo{})

	req := &types.WorkoutRequest{
		WeightUnit: "kg",
		StructuredData: []types.ExerciseInput{
			{Name: "Row", Sets: []types.SetInput{{Reps: nil, Weight: nil}}},
		},
	}
	_, err := svc.Ingest(authedContext(uuid.New()), req)
	ae := apierr.FromError(err)
	if ae == nil || ae.Code != apierr.CodeContentRefused {
		t.Fatalf("error code: want=%s got=%v", apierr.CodeContentRefused, err)
	}
}

func TestIngestMergesStructuredAndNotes(t *testing.T) {
	parser := &fakeWorkoutParser{
		result: &types.ParsedWorkout{
			IsWorkoutRelated: true,
			Exercises: []types.ParsedExercise{
				{Name: "bench press", Sets: []types.ParsedSet{{SetNumber: 1, Reps: f(10)}}},
				{Name: "Lat Pulldown", Sets: []types.ParsedSet{{SetNumber: 1, Reps: f(12)}}},
			},
		},
	}
	svc := newTestIngestion(t, parser, &fakeResolver{}, &fakeWorkoutRepo{})

	req := &types.WorkoutRequest{
		Notes:      "also did lat pulldowns",
		WeightUnit: "kg",
		StructuredData: []types.ExerciseInput{
			{Name: "Bench Press", Sets: []types.SetInput{{Reps: 8, Weight: 60}}},
		},
	}
	result, err := svc.Ingest(authedContext(uuid.New()), req)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if len(result.Workout.Exercises) != 2 {
		t.Fatalf("merged count: want=2 got=%d", len(result.Workout.Exercises))
	}
	bench := result.Workout.Exercises[0]
	if bench.Name != "Bench Press" || *bench.Sets[0].Reps != 8 {
		t.Fatalf("structured exercise not authoritative: %+v", bench)
	}
	if result.Workout.Exercises[1].Name != "Lat Pulldown" || result.Workout.Exercises[1].OrderIndex != 1 {
		t.Fatalf("notes exercise not appended: %+v", result.Workout.Exercises[1])
	}
}

func TestIngestDeduplicatesStructuredNames(t *testing.T) {
	parser := &fakeWorkoutParser{
		result: &types.ParsedWorkout{
			IsWorkoutRelated: true,
			Exercises: []types.ParsedExercise{
				{Name: "Bench Press", Sets: []types.ParsedSet{{SetNumber: 1, Reps: f(10)}}},
			},
		},
	}
	svc := newTestIngestion(t, parser, &fakeResolver{}, &fakeWorkoutRepo{})

	req := &types.WorkoutRequest{
		Notes:      "bench press again",
		WeightUnit: "kg",
		StructuredData: []types.ExerciseInput{
			{Name: "Bench Press", Sets: []types.SetInput{{Reps: 8, Weight: 60}}},
			{Name: "bench  press", Sets: []types.SetInput{{Reps: 6, Weight: 65}}},
		},
	}
	result, err := svc.Ingest(authedContext(uuid.New()), req)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	counts := map[string]int{}
	for _, ex := range result.Workout.Exercises {
		counts[NormalizeExerciseName(ex.Name)]++
	}
	if len(result.Workout.Exercises) != 1 || counts["bench press"] != 1 {
		t.Fatalf("duplicate normalized names in result: %v", counts)
	}
	if got := len(result.Workout.Exercises[0].Sets); got != 2 {
		t.Fatalf("folded set count: want=2 got=%d", got)
	}
}

func TestIngestPersistsInDependencyOrder(t *testing.T) {
	repo := &fakeWorkoutRepo{}
	resolver := &fakeResolver{wasCreated: map[string]bool{"pull up": true}}
	svc := newTestIngestion(t, &fakeWorkoutParser{}, resolver, repo)

	userID := uuid.New()
	req := &types.WorkoutRequest{
		WeightUnit:    "kg",
		CreateWorkout: true,
		WorkoutTitle:  "Pull Day",
		StructuredData: []types.ExerciseInput{
			{Name: "Pull Up", Sets: []types.SetInput{{Reps: 8}, {Reps: 6}}},
			{Name: "Row", Sets: []types.SetInput{{Reps: 12, Weight: 50, RPE: "8,5"}}},
		},
	}
	result, err := svc.Ingest(authedContext(userID), req)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if result.PersistErr != nil {
		t.Fatalf("unexpected persist error: %v", result.PersistErr)
	}
	if repo.workout == nil || repo.workout.UserID != userID || repo.workout.Title != "Pull Day" {
		t.Fatalf("workout row: %+v", repo.workout)
	}
	if len(repo.links) != 2 {
		t.Fatalf("link rows: want=2 got=%d", len(repo.links))
	}
	for idx, link := range repo.links {
		if link.OrderIndex != idx {
			t.Fatalf("link order_index at %d: got=%d", idx, link.OrderIndex)
		}
		if link.WorkoutID != repo.workout.ID {
			t.Fatalf("link workout id mismatch")
		}
	}
	if len(repo.sets) != 3 {
		t.Fatalf("set rows: want=3 got=%d", len(repo.sets))
	}
	if repo.sets[2].RPE == nil || *repo.sets[2].RPE != 8.5 {
		t.Fatalf("rpe carry-over: %+v", repo.sets[2])
	}

	metrics := result.Metrics
	if metrics == nil {
		t.Fatalf("expected metrics")
	}
	if metrics.TotalExercises != 2 || metrics.TotalSets != 3 {
		t.Fatalf("metrics totals: %+v", metrics)
	}
	if metrics.CreatedExercises != 1 || metrics.MatchedExercises != 1 {
		t.Fatalf("metrics resolution split: %+v", metrics)
	}
	if result.CreatedWorkout == nil {
		t.Fatalf("expected created workout in result")
	}
}

func TestIngestSessionInsertFailureIsPartialSuccess(t *testing.T) {
	repo := &fakeWorkoutRepo{failCreate: true}
	resolver := &fakeResolver{}
	svc := newTestIngestion(t, &fakeWorkoutParser{}, resolver, repo)

	req := &types.WorkoutRequest{
		WeightUnit:    "kg",
		CreateWorkout: true,
		StructuredData: []types.ExerciseInput{
			{Name: "Squat", Sets: []types.SetInput{{Reps: 5, Weight: 100}}},
		},
	}
	result, err := svc.Ingest(authedContext(uuid.New()), req)
	if err != nil {
		t.Fatalf("partial success must not surface as a hard error, got %v", err)
	}
	if result.Workout == nil || len(result.Workout.Exercises) != 1 {
		t.Fatalf("parsed workout must survive DB failure: %+v", result.Workout)
	}
	if result.PersistErr == nil || result.PersistErr.Code != apierr.CodeDBFailed {
		t.Fatalf("persist error: want=%s got=%v", apierr.CodeDBFailed, result.PersistErr)
	}
	if resolver.calls != 0 {
		t.Fatalf("resolution must not run after session insert failure")
	}
}

func TestIngestLinkInsertFailureIsPartialSuccess(t *testing.T) {
	repo := &fakeWorkoutRepo{failCreateLinks: true}
	svc := newTestIngestion(t, &fakeWorkoutParser{}, &fakeResolver{}, repo)

	req := &types.WorkoutRequest{
		WeightUnit:    "kg",
		CreateWorkout: true,
		StructuredData: []types.ExerciseInput{
			{Name: "Squat", Sets: []types.SetInput{{Reps: 5, Weight: 100}}},
		},
	}
	result, err := svc.Ingest(authedContext(uuid.New()), req)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if result.PersistErr == nil || result.PersistErr.Code != apierr.CodeDBFailed {
		t.Fatalf("persist error: want=%s got=%v", apierr.CodeDBFailed, result.PersistErr)
	}
	if result.CreatedWorkout != nil {
		t.Fatalf("no created workout on failed link insert")
	}
}

func TestIngestResolverFailureIsPartialSuccess(t *testing.T) {
	repo := &fakeWorkoutRepo{}
	resolver := &fakeResolver{err: apierr.ParseFailed(errors.New("resolution agent exceeded 20 iterations"))}
	svc := newTestIngestion(t, &fakeWorkoutParser{}, resolver, repo)

	req := &types.WorkoutRequest{
		WeightUnit:    "kg",
		CreateWorkout: true,
		StructuredData: []types.ExerciseInput{
			{Name: "Squat", Sets: []types.SetInput{{Reps: 5, Weight: 100}}},
		},
	}
	result, err := svc.Ingest(authedContext(uuid.New()), req)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if result.PersistErr == nil || result.PersistErr.Code != apierr.CodeParseFailed {
		t.Fatalf("persist error: want=%s got=%v", apierr.CodeParseFailed, result.PersistErr)
	}
	if result.Workout == nil {
		t.Fatalf("parsed workout must survive resolution failure")
	}
}

func TestIngestNotesRefusalWithStructuredDataContinues(t *testing.T) {
	parser := &fakeWorkoutParser{err: apierr.ContentRefused(errors.New("not workout content"))}
	svc := newTestIngestion(t, parser, &fakeResolver{}, &fakeWorkoutRepo{})

	req := &types.WorkoutRequest{
		Notes:      "felt pretty tired today",
		WeightUnit: "kg",
		StructuredData: []types.ExerciseInput{
			{Name: "Squat", Sets: []types.SetInput{{Reps: 5, Weight: 100}}},
		},
	}
	result, err := svc.Ingest(authedContext(uuid.New()), req)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if len(result.Workout.Exercises) != 1 || result.Workout.Exercises[0].Name != "Squat" {
		t.Fatalf("structured data lost after notes refusal: %+v", result.Workout)
	}
}
