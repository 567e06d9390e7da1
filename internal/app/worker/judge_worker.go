package worker

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"time"

	"codearena/internal/app/judge"
	"codearena/internal/app/service"
	"codearena/internal/app/ws"
	"codearena/internal/common"
	"codearena/internal/domain/model"
	"codearena/internal/domain/repository"
	"codearena/internal/platform/config"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseLockScript deletes the lock only if we still hold it (CAS on the
// lock value), so an expired lock taken over by another worker is untouched.
var releaseLockScript = redis.NewScript(`
    if redis.call("get", KEYS[1]) == ARGV[1] then
        return redis.call("del", KEYS[1])
    else
        return 0
    end
`)

// JudgeWorker consumes submission IDs from the Redis queue, judges them
// against all test cases through the Piston runner, and persists the
// verdict. A distributed lock serializes judging across workers so only
// one submission executes at a time.
type JudgeWorker struct {
	rdb            *redis.Client
	db             *sql.DB
	submissionRepo repository.SubmissionRepository
	problemRepo    repository.ProblemRepository
	contestRepo    repository.ContestRepository
	runner         *judge.Runner
	contestService *service.ContestService
	hub            *ws.Hub
}

func NewJudgeWorker(
	rdb *redis.Client,
	db *sql.DB,
	subRepo repository.SubmissionRepository,
	probRepo repository.ProblemRepository,
	contestRepo repository.ContestRepository,
	runner *judge.Runner,
	contestService *service.ContestService,
	hub *ws.Hub,
) *JudgeWorker {
	return &JudgeWorker{
		rdb:            rdb,
		db:             db,
		submissionRepo: subRepo,
		problemRepo:    probRepo,
		contestRepo:    contestRepo,
		runner:         runner,
		contestService: contestService,
		hub:            hub,
	}
}

func (w *JudgeWorker) Start(ctx context.Context) {
	log.Println("Judge worker started, listening to queue:", config.AppConfig.JudgeQueueName)
	for {
		select {
		case <-ctx.Done():
			log.Println("Judge worker stopping...")
			return
		default:
			res, err := w.rdb.BRPop(ctx, 0*time.Second, config.AppConfig.JudgeQueueName).Result()
			if err != nil {
				if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					time.Sleep(1 * time.Second)
					continue
				}
				log.Printf("ERROR: Failed to BRPop from queue '%s': %v", config.AppConfig.JudgeQueueName, err)
				time.Sleep(5 * time.Second)
				continue
			}

			// BRPop returns [queueName, value].
			if len(res) < 2 || res[1] == "" {
				log.Println("WARN: BRPop returned empty submission ID.")
				continue
			}
			submissionID := res[1]
			log.Printf("Worker picked up submission %s", submissionID)
			w.judgeWithLock(ctx, submissionID)
		}
	}
}

func (w *JudgeWorker) judgeWithLock(ctx context.Context, submissionID string) {
	lockValue := uuid.NewString()
	lockTTL := time.Duration(config.AppConfig.JudgeLockTTLSeconds) * time.Second

	ok, err := w.rdb.SetNX(ctx, config.AppConfig.JudgeLockKey, lockValue, lockTTL).Result()
	if err != nil {
		log.Printf("ERROR: Failed to attempt lock acquisition for submission %s: %v", submissionID, err)
		w.requeue(ctx, submissionID)
		return
	}
	if !ok {
		log.Printf("INFO: Judge lock busy, re-queueing submission %s.", submissionID)
		w.requeue(ctx, submissionID)
		return
	}

	defer func() {
		deleted, err := releaseLockScript.Run(ctx, w.rdb, []string{config.AppConfig.JudgeLockKey}, lockValue).Result()
		if err != nil {
			log.Printf("ERROR: Failed to release judge lock for submission %s: %v", submissionID, err)
		} else if n, _ := deleted.(int64); n != 1 {
			log.Printf("WARN: Judge lock for submission %s was not held at release; it may have expired.", submissionID)
		}
	}()

	w.judgeSubmission(ctx, submissionID)
}

func (w *JudgeWorker) requeue(ctx context.Context, submissionID string) {
	if err := w.rdb.RPush(ctx, config.AppConfig.JudgeQueueName, submissionID).Err(); err != nil {
		log.Printf("ERROR: Failed to re-queue submission %s: %v", submissionID, err)
	}
}

// fetchSubmission loads the submission to judge. The enqueue happens inside
// the submission's insert transaction, so the ID can arrive on the queue a
// beat before the row is visible; retry once before giving up.
func (w *JudgeWorker) fetchSubmission(ctx context.Context, submissionID string) (*model.Submission, error) {
	sub, err := w.submissionRepo.GetSubmissionByID(ctx, submissionID)
	if errors.Is(err, common.ErrNotFound) {
		time.Sleep(200 * time.Millisecond)
		sub, err = w.submissionRepo.GetSubmissionByID(ctx, submissionID)
	}
	return sub, err
}

func (w *JudgeWorker) judgeSubmission(ctx context.Context, submissionID string) {
	sub, err := w.fetchSubmission(ctx, submissionID)
	if err != nil {
		log.Printf("ERROR: Failed to fetch submission %s: %v", submissionID, err)
		return
	}
	if sub.Verdict.Terminal() {
		log.Printf("WARN: Submission %s already judged (%s), skipping.", submissionID, sub.Verdict)
		return
	}

	if err := w.submissionRepo.SetVerdict(ctx, nil, sub.ID, model.VerdictJudging, 0, 0, nil); err != nil {
		log.Printf("ERROR: Failed to mark submission %s as judging: %v", sub.ID, err)
	}

	problem, err := w.problemRepo.FindProblemByID(ctx, sub.ProblemID)
	if err != nil {
		log.Printf("ERROR: Failed to fetch problem %s for submission %s: %v", sub.ProblemID, sub.ID, err)
		w.finishWithError(ctx, sub)
		return
	}
	testCases, err := w.problemRepo.GetTestCasesByProblemID(ctx, problem.ID)
	if err != nil || len(testCases) == 0 {
		log.Printf("ERROR: No test cases for problem %s (submission %s): %v", problem.ID, sub.ID, err)
		w.finishWithError(ctx, sub)
		return
	}

	inputs := make([]judge.CaseInput, 0, len(testCases))
	for _, tc := range testCases {
		inputs = append(inputs, judge.CaseFor(problem, tc))
	}

	outcomes, verdict := w.runner.JudgeAll(ctx, sub.Language, sub.Code, inputs)

	passed := 0
	results := make([]model.TestCaseResult, 0, len(outcomes))
	for _, o := range outcomes {
		if o.Verdict == model.VerdictAccepted {
			passed++
		}
		results = append(results, model.TestCaseResult{
			ID:              uuid.NewString(),
			SubmissionID:    sub.ID,
			TestCaseID:      o.TestCaseID,
			Hidden:          o.Hidden,
			Stdin:           o.Stdin,
			ExpectedStdout:  o.Expected,
			ActualStdout:    o.ActualStdout,
			Stderr:          o.Stderr,
			Verdict:         o.Verdict,
			ExecutionTimeMs: o.ExecutionTimeMs,
		})
	}

	judgedAt := time.Now().UTC()

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		log.Printf("ERROR: Failed to begin verdict transaction for submission %s: %v", sub.ID, err)
		return
	}
	defer tx.Rollback()

	if err := w.submissionRepo.SetVerdict(ctx, tx, sub.ID, verdict, passed, len(outcomes), &judgedAt); err != nil {
		log.Printf("ERROR: Failed to persist verdict for submission %s: %v", sub.ID, err)
		return
	}
	if err := w.submissionRepo.CreateCaseResults(ctx, tx, results); err != nil {
		log.Printf("ERROR: Failed to persist case results for submission %s: %v", sub.ID, err)
		return
	}
	if verdict == model.VerdictAccepted {
		if err := w.submissionRepo.MarkProblemSolved(ctx, tx, sub.UserID, sub.ProblemID, sub.ID); err != nil {
			log.Printf("ERROR: Failed to mark problem %s solved for user %s: %v", sub.ProblemID, sub.UserID, err)
			return
		}
	}
	if err := tx.Commit(); err != nil {
		log.Printf("ERROR: Failed to commit verdict for submission %s: %v", sub.ID, err)
		return
	}

	log.Printf("INFO: Submission %s judged: %s (%d/%d)", sub.ID, verdict, passed, len(outcomes))
	w.notify(ctx, sub, verdict, passed, len(outcomes))
}

// finishWithError records an execution_error verdict when judging could not
// run at all, so the submission does not sit in judging forever.
func (w *JudgeWorker) finishWithError(ctx context.Context, sub *model.Submission) {
	now := time.Now().UTC()
	if err := w.submissionRepo.SetVerdict(ctx, nil, sub.ID, model.VerdictExecutionError, 0, 0, &now); err != nil {
		log.Printf("ERROR: Failed to record execution_error for submission %s: %v", sub.ID, err)
		return
	}
	w.notify(ctx, sub, model.VerdictExecutionError, 0, 0)
}

type submissionResultPayload struct {
	SubmissionID string        `json:"submission_id"`
	ProblemID    string        `json:"problem_id"`
	Verdict      model.Verdict `json:"verdict"`
	PassedCount  int           `json:"passed_count"`
	TotalCount   int           `json:"total_count"`
}

func (w *JudgeWorker) notify(ctx context.Context, sub *model.Submission, verdict model.Verdict, passed, total int) {
	w.hub.SendToUser(sub.UserID, ws.MsgSubmissionResult, submissionResultPayload{
		SubmissionID: sub.ID,
		ProblemID:    sub.ProblemID,
		Verdict:      verdict,
		PassedCount:  passed,
		TotalCount:   total,
	})

	if sub.ContestID == nil {
		return
	}
	rows, err := w.contestService.RefreshStandings(ctx, *sub.ContestID)
	if err != nil {
		log.Printf("ERROR: Failed to rebuild standings for contest %s: %v", *sub.ContestID, err)
		return
	}
	w.hub.BroadcastToContest(*sub.ContestID, ws.MsgLeaderboardUpdate, rows)
}
