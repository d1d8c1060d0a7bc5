package store

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"Freelance-Autopilot/internal/domain"
)

// Fixture 是用于导入演示或测试数据的 YAML 文档。
// 设置 Anchor 后，Shift 会把所有时间平移到以当前时间为基准。
type Fixture struct {
	Anchor       *time.Time                 `yaml:"anchor,omitempty"`
	Profiles     []domain.FreelancerProfile `yaml:"profiles"`
	Transactions []domain.Transaction       `yaml:"transactions"`
	Invoices     []domain.Invoice           `yaml:"invoices"`
	Tasks        []domain.Task              `yaml:"tasks"`
	Events       []domain.CalendarEvent     `yaml:"events"`
	Jobs         []domain.JobPosting        `yaml:"jobs"`
}

// LoadFixture 从文件读取 Fixture。
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取数据文件失败: %w", err)
	}
	return ParseFixture(data)
}

// ParseFixture 解析 YAML 内容并校验关键字段。
func ParseFixture(data []byte) (*Fixture, error) {
	var fx Fixture
	if err := yaml.Unmarshal(data, &fx); err != nil {
		return nil, fmt.Errorf("解析数据文件失败: %w", err)
	}
	for i, txn := range fx.Transactions {
		dir, ok := domain.ParseDirection(string(txn.Direction))
		if !ok {
			return nil, fmt.Errorf("transactions[%d] 的方向非法: %q", i, txn.Direction)
		}
		fx.Transactions[i].Direction = dir
		if txn.ID == "" || txn.UserID == "" {
			return nil, fmt.Errorf("transactions[%d] 缺少 id 或 user_id", i)
		}
	}
	for i, p := range fx.Profiles {
		if p.UserID == "" {
			return nil, fmt.Errorf("profiles[%d] 缺少 user_id", i)
		}
		if p.SmartSplit != nil {
			if err := p.SmartSplit.Validate(); err != nil {
				return nil, fmt.Errorf("profiles[%d]: %w", i, err)
			}
		}
	}
	return &fx, nil
}

// Shift 将所有时间平移 now-Anchor。未设置 Anchor 时不做处理。
func (f *Fixture) Shift(now time.Time) {
	if f.Anchor == nil {
		return
	}
	delta := now.Sub(*f.Anchor)
	for i := range f.Transactions {
		f.Transactions[i].OccurredAt = f.Transactions[i].OccurredAt.Add(delta)
	}
	for i := range f.Tasks {
		if due := f.Tasks[i].DueDate; due != nil {
			shifted := due.Add(delta)
			f.Tasks[i].DueDate = &shifted
		}
	}
	for i := range f.Events {
		f.Events[i].Start = f.Events[i].Start.Add(delta)
		f.Events[i].End = f.Events[i].End.Add(delta)
	}
	for i := range f.Jobs {
		f.Jobs[i].PostedAt = f.Jobs[i].PostedAt.Add(delta)
	}
	anchor := now
	f.Anchor = &anchor
}

// Seed 将 Fixture 写入目标存储。
func (f *Fixture) Seed(ctx context.Context, target Seeder) error {
	for _, p := range f.Profiles {
		if err := target.UpsertProfile(ctx, p); err != nil {
			return fmt.Errorf("导入用户 %s 失败: %w", p.UserID, err)
		}
	}
	for _, txn := range f.Transactions {
		if err := target.InsertTransaction(ctx, txn); err != nil {
			return fmt.Errorf("导入交易 %s 失败: %w", txn.ID, err)
		}
	}
	for _, inv := range f.Invoices {
		if err := target.InsertInvoice(ctx, inv); err != nil {
			return fmt.Errorf("导入发票 %s 失败: %w", inv.ID, err)
		}
	}
	for _, t := range f.Tasks {
		if err := target.InsertTask(ctx, t); err != nil {
			return fmt.Errorf("导入任务 %s 失败: %w", t.ID, err)
		}
	}
	for _, e := range f.Events {
		if err := target.SeedCalendarEvent(ctx, e); err != nil {
			return fmt.Errorf("导入日程 %s 失败: %w", e.ID, err)
		}
	}
	for _, j := range f.Jobs {
		if err := target.InsertJob(ctx, j); err != nil {
			return fmt.Errorf("导入职位 %s 失败: %w", j.ID, err)
		}
	}
	return nil
}
