package data

import (
	"database/sql"

	"github.com/go-kratos/kratos/v2/log"
	_ "github.com/lib/pq"

	"github.com/ctrevinoi1/forensic-locator/app/display/internal/conf"
	"github.com/ctrevinoi1/forensic-locator/app/forensic/pkg/engine"
	"github.com/ctrevinoi1/forensic-locator/app/forensic/pkg/storage"
)

type Data struct {
	store *storage.Storage
}

// NewData 配置了数据库时打开报告归档，否则归档关闭
func NewData(c *conf.Data, logger log.Logger) (*Data, func(), error) {
	helper := log.NewHelper(logger)
	if c == nil || c.Database == nil || c.Database.Source == "" {
		helper.Info("report archive disabled")
		return &Data{}, func() {}, nil
	}

	db, err := sql.Open(c.Database.Driver, c.Database.Source)
	if err != nil {
		return nil, nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, nil, err
	}
	store, err := storage.NewWithDB(db)
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	cleanup := func() {
		helper.Info("closing the data resources")
		store.Close()
	}
	return &Data{store: store}, cleanup, nil
}

// ReportStore 供引擎归档报告；归档关闭时返回 nil
func (d *Data) ReportStore() engine.ReportStore {
	if d.store == nil {
		return nil
	}
	return d.store
}
