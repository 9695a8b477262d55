package fleet

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kmrl/opsboard/internal/numeric"
	"github.com/kmrl/opsboard/internal/platform/db"
)

// Repository is the PostgreSQL backed Store. Fitness, mileage and stabling
// rows are derived from the trainsets table.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Batch is one set of rows written atomically.
type Batch struct {
	Trainsets []Trainset
	JobCards  []JobCard
	Campaigns []BrandingCampaign
	Cleaning  []CleaningSlot
}

// Inserted reports how many rows of each kind a batch wrote.
type Inserted struct {
	Trainsets         int `json:"trainsets"`
	JobCards          int `json:"jobcards"`
	BrandingCampaigns int `json:"branding_campaigns"`
	CleaningSlots     int `json:"cleaning_slots"`
}

const trainsetColumns = `train_id, name, fitness, status, mileage, bay, passengers, stations_covered, ticket_sales, valid_until`

func scanTrainset(row pgx.Row) (Trainset, error) {
	var (
		t       Trainset
		mileage int64
		sales   int64
	)
	if err := row.Scan(&t.TrainID, &t.Name, &t.Fitness, &t.Status, &mileage, &t.Bay, &t.Passengers, &t.StationsCovered, &sales, &t.ValidUntil); err != nil {
		return Trainset{}, err
	}
	t.Mileage = numeric.Distance(mileage)
	t.TicketSales = numeric.Money(sales)
	return t, nil
}

func (r *Repository) baseTrainsets(ctx context.Context) ([]Trainset, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+trainsetColumns+` FROM trainsets ORDER BY train_id`)
	if err != nil {
		return nil, fmt.Errorf("fleet: list trainsets: %w", err)
	}
	defer rows.Close()
	var out []Trainset
	for rows.Next() {
		t, err := scanTrainset(rows)
		if err != nil {
			return nil, fmt.Errorf("fleet: scan trainset: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Fitness implements Store.
func (r *Repository) Fitness(ctx context.Context) ([]FitnessCertificate, error) {
	trainsets, err := r.baseTrainsets(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]FitnessCertificate, 0, len(trainsets))
	for _, t := range trainsets {
		out = append(out, DeriveFitness(t))
	}
	return out, nil
}

// Mileage implements Store.
func (r *Repository) Mileage(ctx context.Context) ([]MileageRecord, error) {
	trainsets, err := r.baseTrainsets(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]MileageRecord, 0, len(trainsets))
	for _, t := range trainsets {
		out = append(out, DeriveMileage(t))
	}
	return out, nil
}

// Stabling implements Store.
func (r *Repository) Stabling(ctx context.Context) ([]StablingBay, error) {
	trainsets, err := r.baseTrainsets(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]StablingBay, 0, len(trainsets))
	for _, t := range trainsets {
		out = append(out, DeriveStabling(t))
	}
	return out, nil
}

func (r *Repository) jobCards(ctx context.Context, trainID string) ([]JobCard, error) {
	query := `SELECT job_id, train_id, type, status, priority, assigned FROM jobcards`
	var args []any
	if trainID != "" {
		query += ` WHERE train_id = $1`
		args = append(args, trainID)
	}
	rows, err := r.pool.Query(ctx, query+` ORDER BY job_id`, args...)
	if err != nil {
		return nil, fmt.Errorf("fleet: list job cards: %w", err)
	}
	defer rows.Close()
	out := []JobCard{}
	for rows.Next() {
		var j JobCard
		if err := rows.Scan(&j.JobID, &j.Train, &j.Type, &j.Status, &j.Priority, &j.Assigned); err != nil {
			return nil, fmt.Errorf("fleet: scan job card: %w", err)
		}
		j.Status = NormalizeJobStatus(j.Status)
		out = append(out, j)
	}
	return out, rows.Err()
}

// JobCards implements Store.
func (r *Repository) JobCards(ctx context.Context) ([]JobCard, error) {
	return r.jobCards(ctx, "")
}

func (r *Repository) campaigns(ctx context.Context, trainID string) ([]BrandingCampaign, error) {
	query := `SELECT campaign_id, name, train_id, status, expiry, revenue, hours_left FROM branding_campaigns`
	var args []any
	if trainID != "" {
		query += ` WHERE train_id = $1`
		args = append(args, trainID)
	}
	rows, err := r.pool.Query(ctx, query+` ORDER BY campaign_id`, args...)
	if err != nil {
		return nil, fmt.Errorf("fleet: list campaigns: %w", err)
	}
	defer rows.Close()
	out := []BrandingCampaign{}
	for rows.Next() {
		var (
			c       BrandingCampaign
			revenue int64
		)
		if err := rows.Scan(&c.CampaignID, &c.Campaign, &c.Train, &c.Status, &c.Expiry, &revenue, &c.HoursLeft); err != nil {
			return nil, fmt.Errorf("fleet: scan campaign: %w", err)
		}
		c.Revenue = numeric.Money(revenue)
		out = append(out, c)
	}
	return out, rows.Err()
}

// Branding implements Store.
func (r *Repository) Branding(ctx context.Context) ([]BrandingCampaign, error) {
	return r.campaigns(ctx, "")
}

func (r *Repository) cleaning(ctx context.Context, trainID string) ([]CleaningSlot, error) {
	query := `SELECT train_id, bay, time, status, type FROM cleaning_slots`
	var args []any
	if trainID != "" {
		query += ` WHERE train_id = $1`
		args = append(args, trainID)
	}
	rows, err := r.pool.Query(ctx, query+` ORDER BY train_id`, args...)
	if err != nil {
		return nil, fmt.Errorf("fleet: list cleaning slots: %w", err)
	}
	defer rows.Close()
	out := []CleaningSlot{}
	for rows.Next() {
		var c CleaningSlot
		if err := rows.Scan(&c.TrainID, &c.Bay, &c.Time, &c.Status, &c.Type); err != nil {
			return nil, fmt.Errorf("fleet: scan cleaning slot: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Cleaning implements Store.
func (r *Repository) Cleaning(ctx context.Context) ([]CleaningSlot, error) {
	return r.cleaning(ctx, "")
}

// Trainsets implements Store.
func (r *Repository) Trainsets(ctx context.Context) ([]Trainset, error) {
	trainsets, err := r.baseTrainsets(ctx)
	if err != nil {
		return nil, err
	}
	jobs, err := r.jobCards(ctx, "")
	if err != nil {
		return nil, err
	}
	cleaning, err := r.cleaning(ctx, "")
	if err != nil {
		return nil, err
	}
	campaigns, err := r.campaigns(ctx, "")
	if err != nil {
		return nil, err
	}
	return JoinRelations(trainsets, jobs, cleaning, campaigns), nil
}

// Trainset implements Store.
func (r *Repository) Trainset(ctx context.Context, id string) (Trainset, error) {
	t, err := scanTrainset(r.pool.QueryRow(ctx, `SELECT `+trainsetColumns+` FROM trainsets WHERE train_id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Trainset{}, ErrNotFound
	}
	if err != nil {
		return Trainset{}, fmt.Errorf("fleet: get trainset: %w", err)
	}
	jobs, err := r.jobCards(ctx, id)
	if err != nil {
		return Trainset{}, err
	}
	cleaning, err := r.cleaning(ctx, id)
	if err != nil {
		return Trainset{}, err
	}
	campaigns, err := r.campaigns(ctx, id)
	if err != nil {
		return Trainset{}, err
	}
	return JoinRelations([]Trainset{t}, jobs, cleaning, campaigns)[0], nil
}

const (
	upsertTrainset = `
		INSERT INTO trainsets (` + trainsetColumns + `, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
		ON CONFLICT (train_id) DO UPDATE SET
			name = EXCLUDED.name, fitness = EXCLUDED.fitness, status = EXCLUDED.status,
			mileage = EXCLUDED.mileage, bay = EXCLUDED.bay, passengers = EXCLUDED.passengers,
			stations_covered = EXCLUDED.stations_covered, ticket_sales = EXCLUDED.ticket_sales,
			valid_until = EXCLUDED.valid_until, updated_at = NOW()`
	upsertJobCard = `
		INSERT INTO jobcards (job_id, train_id, type, status, priority, assigned)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (job_id) DO UPDATE SET
			train_id = EXCLUDED.train_id, type = EXCLUDED.type, status = EXCLUDED.status,
			priority = EXCLUDED.priority, assigned = EXCLUDED.assigned`
	upsertCampaign = `
		INSERT INTO branding_campaigns (campaign_id, name, train_id, status, expiry, revenue, hours_left)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (campaign_id) DO UPDATE SET
			name = EXCLUDED.name, train_id = EXCLUDED.train_id, status = EXCLUDED.status,
			expiry = EXCLUDED.expiry, revenue = EXCLUDED.revenue, hours_left = EXCLUDED.hours_left`
	upsertCleaning = `
		INSERT INTO cleaning_slots (train_id, bay, time, status, type)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (train_id) DO UPDATE SET
			bay = EXCLUDED.bay, time = EXCLUDED.time, status = EXCLUDED.status, type = EXCLUDED.type`
)

// InsertBatch upserts every row of b in one transaction. Re-ingesting the
// same file updates rows in place.
func (r *Repository) InsertBatch(ctx context.Context, b Batch) (Inserted, error) {
	batch := &pgx.Batch{}
	for _, t := range b.Trainsets {
		batch.Queue(upsertTrainset, t.TrainID, t.Name, t.Fitness, t.Status, int64(t.Mileage), t.Bay,
			t.Passengers, t.StationsCovered, int64(t.TicketSales), t.ValidUntil)
	}
	for _, j := range b.JobCards {
		batch.Queue(upsertJobCard, j.JobID, j.Train, j.Type, j.Status, j.Priority, j.Assigned)
	}
	for _, c := range b.Campaigns {
		batch.Queue(upsertCampaign, c.CampaignID, c.Campaign, c.Train, c.Status, c.Expiry, int64(c.Revenue), c.HoursLeft)
	}
	for _, c := range b.Cleaning {
		batch.Queue(upsertCleaning, c.TrainID, c.Bay, c.Time, c.Status, c.Type)
	}
	if batch.Len() == 0 {
		return Inserted{}, nil
	}

	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		results := tx.SendBatch(ctx, batch)
		for i := 0; i < batch.Len(); i++ {
			if _, err := results.Exec(); err != nil {
				_ = results.Close()
				return fmt.Errorf("fleet: insert batch row %d: %w", i, err)
			}
		}
		return results.Close()
	})
	if err != nil {
		return Inserted{}, err
	}
	return Inserted{
		Trainsets:         len(b.Trainsets),
		JobCards:          len(b.JobCards),
		BrandingCampaigns: len(b.Campaigns),
		CleaningSlots:     len(b.Cleaning),
	}, nil
}

// Seed writes the stored collections of a dataset. Fitness, mileage and
// stabling rows are derived on read and therefore not stored.
func (r *Repository) Seed(ctx context.Context, d Dataset) (Inserted, error) {
	campaigns := make([]BrandingCampaign, 0, len(d.Branding))
	for _, c := range d.Branding {
		if c.CampaignID == "" {
			c.CampaignID = CampaignID(c.Train)
		}
		campaigns = append(campaigns, c)
	}
	return r.InsertBatch(ctx, Batch{
		Trainsets: d.Trainsets,
		JobCards:  d.JobCards,
		Campaigns: campaigns,
		Cleaning:  d.Cleaning,
	})
}

// Count reports the number of stored trainsets.
func (r *Repository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM trainsets`).Scan(&n); err != nil {
		return 0, fmt.Errorf("fleet: count trainsets: %w", err)
	}
	return n, nil
}

// CampaignID is the identifier given to the campaign of a trainset.
func CampaignID(trainID string) string { return "CMP_" + trainID }

// JobCardID is the identifier given to the first job card of a trainset.
func JobCardID(trainID string) string { return "JC_" + trainID + "_001" }
