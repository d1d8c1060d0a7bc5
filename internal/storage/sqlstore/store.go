package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"Freelance-Autopilot/internal/domain"
	xerrors "Freelance-Autopilot/internal/errors"
	"Freelance-Autopilot/internal/store"
)

// Store 使用关系型数据库实现 store.Store。
type Store struct {
	db      *sql.DB
	dialect dialect
}

var (
	_ store.Store  = (*Store)(nil)
	_ store.Seeder = (*Store)(nil)
)

// Open 连接数据库并执行迁移。
func Open(ctx context.Context, cfg Config) (*Store, error) {
	d, err := dialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}
	db, err := openDatabase(ctx, d, cfg)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStoreUnavailable, err, "")
	}
	if err := runMigrations(ctx, db, d); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, dialect: d}, nil
}

// Close 释放连接池。
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping 检查数据库是否可达。
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return xerrors.Wrap(xerrors.CodeStoreUnavailable, err, "")
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func failure(err error, message string) error {
	if isDuplicate(err) {
		return xerrors.Wrap(xerrors.CodeValidation, err, "记录已存在")
	}
	return xerrors.Wrap(xerrors.CodeStoreFailure, err, message)
}

func unix(t time.Time) int64 { return t.Unix() }

func fromUnix(v int64) time.Time { return time.Unix(v, 0).UTC() }

func encodeJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeStrings(raw string) []string {
	var out []string
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil
	}
	return out
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

const selectProfile = `SELECT ` + profileColumns + ` FROM profiles WHERE user_id = ?`

// GetProfile 实现 store.Reader。
func (s *Store) GetProfile(ctx context.Context, userID string) (*domain.FreelancerProfile, error) {
	var (
		p                      domain.FreelancerProfile
		skills                 string
		taxPct, savPct, bufPct sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, selectProfile, userID).Scan(
		&p.UserID, &p.Name, &skills, &p.HourlyRate, &p.CheckingBalance,
		&taxPct, &savPct, &bufPct, &p.Capacity.BillableDaysPerYear, &p.Capacity.BillableHoursPerDay)
	if err != nil {
		if stdErrors.Is(err, sql.ErrNoRows) {
			return nil, xerrors.New(xerrors.CodeNotFound, "用户资料不存在", xerrors.WithMetadata("user_id", userID))
		}
		return nil, failure(err, "查询用户资料失败")
	}
	p.Skills = decodeStrings(skills)
	if taxPct.Valid && savPct.Valid && bufPct.Valid {
		p.SmartSplit = &domain.SmartSplitConfig{TaxPct: taxPct.Int64, SavingsPct: savPct.Int64, BufferPct: bufPct.Int64}
	}
	return &p, nil
}

// UpsertProfile 实现 store.Seeder。
func (s *Store) UpsertProfile(ctx context.Context, p domain.FreelancerProfile) error {
	skills, err := encodeJSON(p.Skills)
	if err != nil {
		return failure(err, "序列化技能失败")
	}
	var taxPct, savPct, bufPct sql.NullInt64
	if p.SmartSplit != nil {
		taxPct = sql.NullInt64{Int64: p.SmartSplit.TaxPct, Valid: true}
		savPct = sql.NullInt64{Int64: p.SmartSplit.SavingsPct, Valid: true}
		bufPct = sql.NullInt64{Int64: p.SmartSplit.BufferPct, Valid: true}
	}
	if _, err := s.db.ExecContext(ctx, s.dialect.upsertProfile,
		p.UserID, p.Name, skills, p.HourlyRate, p.CheckingBalance,
		taxPct, savPct, bufPct, p.Capacity.BillableDaysPerYear, p.Capacity.BillableHoursPerDay); err != nil {
		return failure(err, "写入用户资料失败")
	}
	return nil
}

const jobColumns = `id, client_id, title, category, description, budget_min, budget_max, skills, estimated_hours, is_open, posted_at`

// FindOpenJobs 实现 store.Reader。
func (s *Store) FindOpenJobs(ctx context.Context, limit int) ([]domain.JobPosting, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE is_open = 1 ORDER BY posted_at DESC, id ASC LIMIT ?`,
		store.ClampLimit(limit))
	if err != nil {
		return nil, failure(err, "查询职位失败")
	}
	defer rows.Close()

	var out []domain.JobPosting
	for rows.Next() {
		var (
			j        domain.JobPosting
			skills   string
			postedAt int64
		)
		if err := rows.Scan(&j.ID, &j.ClientID, &j.Title, &j.Category, &j.Description,
			&j.BudgetMin, &j.BudgetMax, &skills, &j.EstimatedHours, &j.Open, &postedAt); err != nil {
			return nil, failure(err, "解析职位失败")
		}
		j.Skills = decodeStrings(skills)
		j.PostedAt = fromUnix(postedAt)
		out = append(out, j)
	}
	if err := rows.Err(); err != nil {
		return nil, failure(err, "遍历职位失败")
	}
	return out, nil
}

// InsertJob 实现 store.Seeder。
func (s *Store) InsertJob(ctx context.Context, j domain.JobPosting) error {
	skills, err := encodeJSON(j.Skills)
	if err != nil {
		return failure(err, "序列化技能失败")
	}
	_, err = s.db.ExecContext(ctx, s.dialect.insertIgnore+` jobs (`+jobColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		j.ID, j.ClientID, j.Title, j.Category, j.Description, j.BudgetMin, j.BudgetMax, skills,
		j.EstimatedHours, boolInt(j.Open), unix(j.PostedAt))
	if err != nil {
		return failure(err, "写入职位失败")
	}
	return nil
}

const txnColumns = `id, user_id, amount, direction, narration, occurred_at, balance_after, category, deductible`

func scanTransaction(row rowScanner) (domain.Transaction, error) {
	var (
		t          domain.Transaction
		direction  string
		occurredAt int64
		balance    decimal.NullDecimal
		category   sql.NullString
		deductible sql.NullBool
	)
	if err := row.Scan(&t.ID, &t.UserID, &t.Amount, &direction, &t.Narration, &occurredAt, &balance, &category, &deductible); err != nil {
		return t, err
	}
	t.Direction, _ = domain.ParseDirection(direction)
	t.OccurredAt = fromUnix(occurredAt)
	if balance.Valid {
		b := balance.Decimal
		t.BalanceAfter = &b
	}
	if category.Valid {
		c := category.String
		t.Category = &c
	}
	if deductible.Valid {
		d := deductible.Bool
		t.Deductible = &d
	}
	return t, nil
}

// FindRecentTransactions 实现 store.Reader。
func (s *Store) FindRecentTransactions(ctx context.Context, userID string, since time.Time) ([]domain.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+txnColumns+` FROM transactions
WHERE user_id = ? AND occurred_at >= ? ORDER BY occurred_at ASC, id ASC`, userID, unix(since))
	if err != nil {
		return nil, failure(err, "查询交易失败")
	}
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, failure(err, "解析交易失败")
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, failure(err, "遍历交易失败")
	}
	return out, nil
}

// FindLatestTransaction 实现 store.Reader。
func (s *Store) FindLatestTransaction(ctx context.Context, userID string) (*domain.Transaction, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+txnColumns+` FROM transactions
WHERE user_id = ? ORDER BY occurred_at DESC, id DESC LIMIT 1`, userID)
	t, err := scanTransaction(row)
	if err != nil {
		if stdErrors.Is(err, sql.ErrNoRows) {
			return nil, xerrors.New(xerrors.CodeNotFound, "没有交易记录", xerrors.WithMetadata("user_id", userID))
		}
		return nil, failure(err, "查询最新交易失败")
	}
	return &t, nil
}

// InsertTransaction 实现 store.Seeder。
func (s *Store) InsertTransaction(ctx context.Context, t domain.Transaction) error {
	var balance decimal.NullDecimal
	if t.BalanceAfter != nil {
		balance = decimal.NewNullDecimal(*t.BalanceAfter)
	}
	var category sql.NullString
	if t.Category != nil {
		category = sql.NullString{String: *t.Category, Valid: true}
	}
	var deductible sql.NullInt64
	if t.Deductible != nil {
		deductible = sql.NullInt64{Int64: int64(boolInt(*t.Deductible)), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, s.dialect.insertIgnore+` transactions (`+txnColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.Amount, string(t.Direction), t.Narration, unix(t.OccurredAt), balance, category, deductible)
	if err != nil {
		return failure(err, "写入交易失败")
	}
	return nil
}

// UpdateTransactionCategory 实现 store.Writer。条件更新保证只写入一次。
func (s *Store) UpdateTransactionCategory(ctx context.Context, txnID, category string, deductible bool) (bool, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE transactions SET category = ?, deductible = ? WHERE id = ? AND category IS NULL`,
		category, boolInt(deductible), txnID)
	if err != nil {
		return false, failure(err, "更新交易分类失败")
	}
	return s.appliedOrMissing(ctx, res, `SELECT 1 FROM transactions WHERE id = ?`, txnID, "交易不存在")
}

const invoiceColumns = `id, client_id, owner_id, amount_due, currency, status, days_overdue, nudge_subject, nudge_body, nudge_status, nudge_created_at`

// FindOverdueInvoices 实现 store.Reader。
func (s *Store) FindOverdueInvoices(ctx context.Context, ownerID string) ([]domain.Invoice, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+invoiceColumns+` FROM invoices
WHERE owner_id = ? AND status IN (?, ?) AND days_overdue > 0 ORDER BY id ASC`,
		ownerID, string(domain.InvoicePending), string(domain.InvoiceOverdue))
	if err != nil {
		return nil, failure(err, "查询发票失败")
	}
	defer rows.Close()

	var out []domain.Invoice
	for rows.Next() {
		var (
			inv                        domain.Invoice
			status                     string
			subject, body, nudgeStatus sql.NullString
			nudgeCreated               sql.NullInt64
		)
		if err := rows.Scan(&inv.ID, &inv.ClientID, &inv.OwnerID, &inv.AmountDue, &inv.Currency, &status,
			&inv.DaysOverdue, &subject, &body, &nudgeStatus, &nudgeCreated); err != nil {
			return nil, failure(err, "解析发票失败")
		}
		inv.Status = domain.InvoiceStatus(status)
		if nudgeStatus.Valid {
			inv.DraftNudge = &domain.DraftNudge{
				Subject:   subject.String,
				Body:      body.String,
				Status:    domain.NudgeStatus(nudgeStatus.String),
				CreatedAt: fromUnix(nudgeCreated.Int64),
			}
		}
		out = append(out, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, failure(err, "遍历发票失败")
	}
	return out, nil
}

// InsertInvoice 实现 store.Seeder。
func (s *Store) InsertInvoice(ctx context.Context, inv domain.Invoice) error {
	var subject, body, status sql.NullString
	var created sql.NullInt64
	if d := inv.DraftNudge; d != nil {
		subject = sql.NullString{String: d.Subject, Valid: true}
		body = sql.NullString{String: d.Body, Valid: true}
		status = sql.NullString{String: string(d.Status), Valid: true}
		created = sql.NullInt64{Int64: unix(d.CreatedAt), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, s.dialect.insertIgnore+` invoices (`+invoiceColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID, inv.ClientID, inv.OwnerID, inv.AmountDue, inv.Currency, strings.ToUpper(string(inv.Status)),
		inv.DaysOverdue, subject, body, status, created)
	if err != nil {
		return failure(err, "写入发票失败")
	}
	return nil
}

// SetInvoiceDraftNudge 实现 store.Writer。条件更新保证草稿只写入一次。
func (s *Store) SetInvoiceDraftNudge(ctx context.Context, invoiceID string, draft domain.DraftNudge) (bool, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE invoices SET nudge_subject = ?, nudge_body = ?, nudge_status = ?, nudge_created_at = ?
WHERE id = ? AND nudge_status IS NULL`,
		draft.Subject, draft.Body, string(draft.Status), unix(draft.CreatedAt), invoiceID)
	if err != nil {
		return false, failure(err, "写入催款草稿失败")
	}
	return s.appliedOrMissing(ctx, res, `SELECT 1 FROM invoices WHERE id = ?`, invoiceID, "发票不存在")
}

// appliedOrMissing 在条件更新未命中时区分记录不存在与条件不满足。
func (s *Store) appliedOrMissing(ctx context.Context, res sql.Result, probe, id, missing string) (bool, error) {
	affected, err := res.RowsAffected()
	if err != nil {
		return false, failure(err, "读取影响行数失败")
	}
	if affected > 0 {
		return true, nil
	}
	var one int
	if err := s.db.QueryRowContext(ctx, probe, id).Scan(&one); err != nil {
		if stdErrors.Is(err, sql.ErrNoRows) {
			return false, xerrors.New(xerrors.CodeNotFound, missing, xerrors.WithMetadata("id", id))
		}
		return false, failure(err, "查询记录失败")
	}
	return false, nil
}

const taskColumns = `id, user_id, title, due_at, estimated_hours, priority, done`

// FindUpcomingTasks 实现 store.Reader。
func (s *Store) FindUpcomingTasks(ctx context.Context, userID string, from, to time.Time) ([]domain.Task, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks
WHERE user_id = ? AND done = 0 AND due_at IS NOT NULL AND due_at >= ? AND due_at <= ?
ORDER BY due_at ASC, id ASC`, userID, unix(from), unix(to))
	if err != nil {
		return nil, failure(err, "查询任务失败")
	}
	defer rows.Close()

	var out []domain.Task
	for rows.Next() {
		var (
			t        domain.Task
			due      sql.NullInt64
			priority string
		)
		if err := rows.Scan(&t.ID, &t.UserID, &t.Title, &due, &t.EstimatedHours, &priority, &t.Done); err != nil {
			return nil, failure(err, "解析任务失败")
		}
		if due.Valid {
			d := fromUnix(due.Int64)
			t.DueDate = &d
		}
		t.Priority = domain.Priority(priority)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, failure(err, "遍历任务失败")
	}
	return out, nil
}

// InsertTask 实现 store.Seeder。
func (s *Store) InsertTask(ctx context.Context, t domain.Task) error {
	var due sql.NullInt64
	if t.DueDate != nil {
		due = sql.NullInt64{Int64: unix(*t.DueDate), Valid: true}
	}
	priority := t.Priority
	if priority == "" {
		priority = domain.PriorityMedium
	}
	_, err := s.db.ExecContext(ctx, s.dialect.insertIgnore+` tasks (`+taskColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.Title, due, t.EstimatedHours, string(priority), boolInt(t.Done))
	if err != nil {
		return failure(err, "写入任务失败")
	}
	return nil
}

// UpdateTaskPriority 实现 store.Writer。
func (s *Store) UpdateTaskPriority(ctx context.Context, userID, taskID string, priority domain.Priority) error {
	res, err := s.db.ExecContext(ctx, `UPDATE tasks SET priority = ? WHERE id = ? AND user_id = ?`, string(priority), taskID, userID)
	if err != nil {
		return failure(err, "更新任务优先级失败")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return failure(err, "读取影响行数失败")
	}
	if affected > 0 {
		return nil
	}
	// MySQL 在值未变化时同样返回 0 行。
	var one int
	if err := s.db.QueryRowContext(ctx, `SELECT 1 FROM tasks WHERE id = ? AND user_id = ?`, taskID, userID).Scan(&one); err != nil {
		if stdErrors.Is(err, sql.ErrNoRows) {
			return xerrors.New(xerrors.CodeNotFound, "任务不存在", xerrors.WithMetadata("task_id", taskID))
		}
		return failure(err, "查询任务失败")
	}
	return nil
}

// FindCalendarEvents 实现 store.Reader。
func (s *Store) FindCalendarEvents(ctx context.Context, userID string, from, to time.Time) ([]domain.CalendarEvent, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, user_id, start_at, end_at, title, event_type FROM calendar_events
WHERE user_id = ? AND start_at < ? AND end_at > ? ORDER BY start_at ASC, id ASC`, userID, unix(to), unix(from))
	if err != nil {
		return nil, failure(err, "查询日程失败")
	}
	defer rows.Close()

	var out []domain.CalendarEvent
	for rows.Next() {
		var (
			e          domain.CalendarEvent
			start, end int64
			typ        string
		)
		if err := rows.Scan(&e.ID, &e.UserID, &start, &end, &e.Title, &typ); err != nil {
			return nil, failure(err, "解析日程失败")
		}
		e.Start, e.End, e.Type = fromUnix(start), fromUnix(end), domain.EventType(typ)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, failure(err, "遍历日程失败")
	}
	return out, nil
}

// InsertCalendarEvent 实现 store.Writer。
func (s *Store) InsertCalendarEvent(ctx context.Context, e domain.CalendarEvent) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO calendar_events (id, user_id, start_at, end_at, title, event_type) VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.UserID, unix(e.Start), unix(e.End), e.Title, string(e.Type))
	if err != nil {
		return failure(err, "写入日程失败")
	}
	return nil
}

// SeedCalendarEvent 实现 store.Seeder，重复 ID 会被忽略。
func (s *Store) SeedCalendarEvent(ctx context.Context, e domain.CalendarEvent) error {
	_, err := s.db.ExecContext(ctx, s.dialect.insertIgnore+` calendar_events (id, user_id, start_at, end_at, title, event_type) VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.UserID, unix(e.Start), unix(e.End), e.Title, string(e.Type))
	if err != nil {
		return failure(err, "导入日程失败")
	}
	return nil
}

// InsertNotification 实现 store.Writer。
func (s *Store) InsertNotification(ctx context.Context, n domain.Notification) error {
	var metadata sql.NullString
	if len(n.Metadata) > 0 {
		encoded, err := encodeJSON(n.Metadata)
		if err != nil {
			return failure(err, "序列化通知元数据失败")
		}
		metadata = sql.NullString{String: encoded, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO notifications
(id, recipient_id, type, message, is_read, related_entity_id, metadata, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.RecipientID, string(n.Type), n.Message, boolInt(n.Read), n.RelatedEntityID, metadata, unix(n.CreatedAt))
	if err != nil {
		return failure(err, "写入通知失败")
	}
	return nil
}

// ListNotifications 实现 store.Reader。
func (s *Store) ListNotifications(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, recipient_id, type, message, is_read, related_entity_id, metadata, created_at
FROM notifications WHERE recipient_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`, userID, store.ClampLimit(limit))
	if err != nil {
		return nil, failure(err, "查询通知失败")
	}
	defer rows.Close()

	var out []domain.Notification
	for rows.Next() {
		var (
			n        domain.Notification
			typ      string
			metadata sql.NullString
			created  int64
		)
		if err := rows.Scan(&n.ID, &n.RecipientID, &typ, &n.Message, &n.Read, &n.RelatedEntityID, &metadata, &created); err != nil {
			return nil, failure(err, "解析通知失败")
		}
		n.Type = domain.NotificationType(typ)
		n.CreatedAt = fromUnix(created)
		if metadata.Valid && metadata.String != "" {
			if err := json.Unmarshal([]byte(metadata.String), &n.Metadata); err != nil {
				return nil, failure(err, fmt.Sprintf("解析通知 %s 的元数据失败", n.ID))
			}
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, failure(err, "遍历通知失败")
	}
	return out, nil
}

// InsertBid 实现 store.Writer。
func (s *Store) InsertBid(ctx context.Context, b domain.Bid) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO bids (id, job_id, freelancer_id, amount, proposal, status, submitted_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`, b.ID, b.JobID, b.FreelancerID, b.Amount, b.Proposal, b.Status, unix(b.SubmittedAt))
	if err != nil {
		return failure(err, "写入投标失败")
	}
	return nil
}

// InsertRun 实现 store.Writer。
func (s *Store) InsertRun(ctx context.Context, r domain.RunRecord) error {
	logs, err := encodeJSON(r.Logs)
	if err != nil {
		return failure(err, "序列化运行日志失败")
	}
	var runErr sql.NullString
	if r.Error != "" {
		runErr = sql.NullString{String: r.Error, Valid: true}
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO agent_runs (id, user_id, status, action_count, logs, error, started_at, finished_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, r.ID, r.UserID, string(r.Status), r.ActionCount, logs, runErr, unix(r.StartedAt), unix(r.FinishedAt))
	if err != nil {
		return failure(err, "写入运行记录失败")
	}
	return nil
}

// ListRuns 实现 store.Reader。
func (s *Store) ListRuns(ctx context.Context, userID string, limit int) ([]domain.RunRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, user_id, status, action_count, logs, error, started_at, finished_at
FROM agent_runs WHERE user_id = ? ORDER BY started_at DESC, id DESC LIMIT ?`, userID, store.ClampLimit(limit))
	if err != nil {
		return nil, failure(err, "查询运行记录失败")
	}
	defer rows.Close()

	var out []domain.RunRecord
	for rows.Next() {
		var (
			r                 domain.RunRecord
			status, logs      string
			runErr            sql.NullString
			started, finished int64
		)
		if err := rows.Scan(&r.ID, &r.UserID, &status, &r.ActionCount, &logs, &runErr, &started, &finished); err != nil {
			return nil, failure(err, "解析运行记录失败")
		}
		r.Status = domain.RunStatus(status)
		r.Logs = decodeStrings(logs)
		r.Error = runErr.String
		r.StartedAt, r.FinishedAt = fromUnix(started), fromUnix(finished)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, failure(err, "遍历运行记录失败")
	}
	return out, nil
}
