package recorder

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"

	"feedstate/pkg/conn"
)

// bbaRow is the persisted shape of one record.
type bbaRow struct {
	ID        uint64          `gorm:"primaryKey;autoIncrement"`
	BatchID   string          `gorm:"size:36;index"`
	Exchange  string          `gorm:"size:32;index:idx_bba_key,priority:1"`
	Symbol    string          `gorm:"size:32;index:idx_bba_key,priority:2"`
	Timestamp time.Time       `gorm:"index:idx_bba_key,priority:3"`
	BestBid   decimal.Decimal `gorm:"type:numeric"`
	BestAsk   decimal.Decimal `gorm:"type:numeric"`
	Midprice  decimal.Decimal `gorm:"type:numeric"`
}

func (bbaRow) TableName() string {
	return "bba_samples"
}

// PostgresSink inserts records into the bba_samples table.
type PostgresSink struct {
	client *conn.Client
}

// NewPostgresSink migrates the table and returns a sink owning the client.
func NewPostgresSink(client *conn.Client) (*PostgresSink, error) {
	if client == nil || client.DB() == nil {
		return nil, errors.New("postgres client is nil")
	}
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	if err := client.Ping(ctx); err != nil {
		return nil, errors.Wrap(err, "ping postgres")
	}
	if err := client.DB().AutoMigrate(&bbaRow{}); err != nil {
		return nil, errors.Wrap(err, "migrate bba_samples")
	}
	return &PostgresSink{client: client}, nil
}

func (p *PostgresSink) Name() string {
	return "postgres"
}

func (p *PostgresSink) Write(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	rows := toRows(records)
	if err := p.client.DB().WithContext(ctx).CreateInBatches(rows, len(rows)).Error; err != nil {
		return errors.Wrap(err, "insert bba_samples")
	}
	return nil
}

func (p *PostgresSink) Close() error {
	return p.client.Close()
}

func toRows(records []Record) []bbaRow {
	rows := make([]bbaRow, 0, len(records))
	for _, r := range records {
		rows = append(rows, bbaRow{
			BatchID:   r.BatchID,
			Exchange:  r.Exchange,
			Symbol:    r.Symbol,
			Timestamp: r.Timestamp.UTC(),
			BestBid:   r.BestBid,
			BestAsk:   r.BestAsk,
			Midprice:  r.Midprice,
		})
	}
	return rows
}
