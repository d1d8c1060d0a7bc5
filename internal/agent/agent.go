package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"Freelance-Autopilot/internal/domain"
	xerrors "Freelance-Autopilot/internal/errors"
)

// Name 标识一个 Agent。
type Name string

const (
	Hunter       Name = "Hunter"
	Collections  Name = "Collections"
	CFO          Name = "CFO"
	Productivity Name = "Productivity"
	Tax          Name = "Tax"
)

// Rule 是单个 Agent 的触发判断与动作生成。ShouldAct 必须是确定性的纯函数。
type Rule[C any] interface {
	ShouldAct(candidate C) bool
	Act(ctx context.Context, candidate C) ([]Action, error)
}

// Source 为指定用户加载有界的候选快照，顺序即评估顺序。
type Source[C any] func(ctx context.Context, userID string) ([]C, error)

// Outcome 是一次 Step 的产出。
type Outcome struct {
	Actions []Action
	Logs    []string
}

// Unit 是编排器迭代的统一能力。
type Unit interface {
	Name() Name
	Step(ctx context.Context, userID string) (*Outcome, error)
}

// TextGenerator 是 Agent 使用的文本生成能力，由 llm.Guard 实现。
type TextGenerator interface {
	Generate(ctx context.Context, prompt string, maxTokens int) (string, error)
	TextOr(ctx context.Context, prompt string, maxTokens int, fallback string) string
}

// Env 汇总 Agent 共享的依赖。
type Env struct {
	Text   TextGenerator
	Logger *slog.Logger
	Now    func() time.Time
	NewID  func() string
}

// Clock 返回当前时间。
func (e Env) Clock() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// ID 生成新的记录 ID。
func (e Env) ID() string {
	if e.NewID != nil {
		return e.NewID()
	}
	return uuid.NewString()
}

// Log 返回日志器。
func (e Env) Log() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

type cappedUnit[C any] struct {
	name     Name
	source   Source[C]
	rule     Rule[C]
	limit    int
	describe func(C) string
}

// Capped 构造一个按顺序评估候选的 Unit，在 limit 个候选产出动作后停止。
// limit 小于等于 0 表示不限制。未产出动作的候选不计入上限。
func Capped[C any](name Name, source Source[C], rule Rule[C], limit int, describe func(C) string) Unit {
	return &cappedUnit[C]{name: name, source: source, rule: rule, limit: limit, describe: describe}
}

func (u *cappedUnit[C]) Name() Name { return u.name }

func (u *cappedUnit[C]) Step(ctx context.Context, userID string) (*Outcome, error) {
	candidates, err := u.source(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := &Outcome{}
	acted := 0
	for _, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		if !u.rule.ShouldAct(candidate) {
			continue
		}
		out.Logs = append(out.Logs, fmt.Sprintf("%s acting on %s", u.name, u.describe(candidate)))
		actions, err := u.rule.Act(ctx, candidate)
		if err != nil {
			return nil, err
		}
		if len(actions) == 0 {
			continue
		}
		out.Actions = append(out.Actions, actions...)
		acted++
		if u.limit > 0 && acted >= u.limit {
			break
		}
	}
	return out, nil
}

// ProfileGetter 读取用户资料。
type ProfileGetter interface {
	GetProfile(ctx context.Context, userID string) (*domain.FreelancerProfile, error)
}

// ProfileOrDefault 读取用户资料，不存在时返回只带 UserID 的空资料。
func ProfileOrDefault(ctx context.Context, getter ProfileGetter, userID string) (domain.FreelancerProfile, error) {
	profile, err := getter.GetProfile(ctx, userID)
	if err != nil {
		if xerrors.HasCode(err, xerrors.CodeNotFound) {
			return domain.FreelancerProfile{UserID: userID}, nil
		}
		return domain.FreelancerProfile{}, err
	}
	if profile == nil {
		return domain.FreelancerProfile{UserID: userID}, nil
	}
	return *profile, nil
}
