// Package insights answers free-form questions about org capacity by
// handing the current snapshot to a chat model. It only reads.
package insights

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/zulandar/workyard/internal/apperr"
	"github.com/zulandar/workyard/internal/capacity"
	"github.com/zulandar/workyard/internal/config"
	"github.com/zulandar/workyard/internal/logging"
	"github.com/zulandar/workyard/internal/models"
	"github.com/zulandar/workyard/internal/workitem"
)

// ErrNotConfigured is returned by New when no API key is set.
var ErrNotConfigured = errors.New("insights: no api key configured")

const systemPrompt = `You answer questions about team workload capacity.
The JSON below is the current organization snapshot: a summary roll-up and one entry per person.
Utilization is planned hours divided by available hours; bands are available, near_capacity, at_capacity and over_capacity.
Data quality is the share of active assignments complete enough to score.
Answer only from this data and say so when it cannot answer the question.`

const balancePrompt = `You recommend how to rebalance workload between two team members.
The JSON below holds each person's capacity snapshot and assignments.
Prefer moving assignments whose category the recipient already works in, and larger effort sizes (L, XL) over small ones.
Planning and On Hold assignments are easier to move than In Progress ones.
Aim to bring both people between 60% and 85% utilization and estimate each person's utilization after every move.
List three to five assignments by name, most suitable first, and end with the set you would move together.`

// DefaultBalanceQuestion is asked when Balance gets a blank question.
const DefaultBalanceQuestion = "Which assignments should move between these two people to balance their workload?"

// chatClient is the part of the OpenAI client used here.
type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OrgSource returns the org roll-up to reason over.
type OrgSource func(ctx context.Context) (capacity.Team, error)

// Advisor sends questions with capacity context to the model.
type Advisor struct {
	client  chatClient
	model   string
	source  OrgSource
	timeout time.Duration
	log     *zap.Logger
}

// New creates an Advisor from config. It fails with ErrNotConfigured when
// cfg has no API key.
func New(cfg config.InsightsConfig, source OrgSource, log *zap.Logger) (*Advisor, error) {
	if cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	return newAdvisor(openai.NewClientWithConfig(oc), cfg.Model, source, log), nil
}

func newAdvisor(client chatClient, model string, source OrgSource, log *zap.Logger) *Advisor {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &Advisor{
		client:  client,
		model:   model,
		source:  source,
		timeout: 60 * time.Second,
		log:     logging.OrNop(log),
	}
}

// Answer is the model's reply with the weights version it was given.
type Answer struct {
	Question       string `json:"question"`
	Answer         string `json:"answer"`
	Model          string `json:"model"`
	WeightsVersion uint64 `json:"weights_version"`
}

// Ask answers question against the live org snapshot.
func (a *Advisor) Ask(ctx context.Context, question string) (*Answer, error) {
	const op = "insights.Ask"
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, apperr.Validation(op, "question is required")
	}
	org, err := a.source(ctx)
	if err != nil {
		return nil, err
	}
	snapshot, err := json.Marshal(org)
	if err != nil {
		return nil, fmt.Errorf("%s: encode snapshot: %w", op, err)
	}

	answer, err := a.complete(ctx, op, systemPrompt+"\n\n"+string(snapshot), question)
	if err != nil {
		return nil, err
	}
	return &Answer{
		Question:       question,
		Answer:         answer,
		Model:          a.model,
		WeightsVersion: org.Summary.WeightsVersion,
	}, nil
}

// Workload is one person's capacity with the assignments behind it.
type Workload struct {
	Capacity    capacity.Snapshot `json:"capacity"`
	Assignments []models.WorkItem `json:"assignments"`
}

// LoadWorkload reads a person's capacity snapshot and work items.
func LoadWorkload(ctx context.Context, gdb *gorm.DB, svc *capacity.Service, personID string) (Workload, error) {
	snap, err := svc.ForPerson(ctx, personID)
	if err != nil {
		return Workload{}, err
	}
	items, err := workitem.List(gdb.WithContext(ctx), workitem.ListFilters{OwnerID: personID})
	if err != nil {
		return Workload{}, err
	}
	return Workload{Capacity: snap, Assignments: items}, nil
}

// Balance asks which assignments to move between two people. A blank
// question uses DefaultBalanceQuestion.
func (a *Advisor) Balance(ctx context.Context, first, second Workload, question string) (*Answer, error) {
	const op = "insights.Balance"
	if first.Capacity.PersonID == "" || second.Capacity.PersonID == "" {
		return nil, apperr.Validation(op, "two people are required")
	}
	if first.Capacity.PersonID == second.Capacity.PersonID {
		return nil, apperr.Validation(op, "cannot balance %s against themselves", first.Capacity.Name)
	}
	question = strings.TrimSpace(question)
	if question == "" {
		question = DefaultBalanceQuestion
	}
	data, err := json.Marshal([]Workload{first, second})
	if err != nil {
		return nil, fmt.Errorf("%s: encode workloads: %w", op, err)
	}

	answer, err := a.complete(ctx, op, balancePrompt+"\n\n"+string(data), question)
	if err != nil {
		return nil, err
	}
	return &Answer{
		Question:       question,
		Answer:         answer,
		Model:          a.model,
		WeightsVersion: first.Capacity.WeightsVersion,
	}, nil
}

// complete sends one system and one user message and returns the trimmed
// reply.
func (a *Advisor) complete(ctx context.Context, op, system, question string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       a.model,
		Temperature: 0.2,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: question},
		},
	})
	if err != nil {
		a.log.Warn("insights: model call failed", zap.String("op", op), zap.String("model", a.model), zap.Error(err))
		return "", apperr.Dependency(op, "model call failed: %v", err)
	}
	if len(resp.Choices) == 0 {
		return "", apperr.Dependency(op, "model returned no choices")
	}
	a.log.Info("insights: answered",
		zap.String("op", op),
		zap.String("model", a.model),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens))
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
