package engine

import (
	"github.com/rise-and-shine/recoengine/cache"
	"github.com/rise-and-shine/recoengine/events"
	"github.com/rise-and-shine/recoengine/http/server"
	"github.com/rise-and-shine/recoengine/ingest"
	"github.com/rise-and-shine/recoengine/logger"
	"github.com/rise-and-shine/recoengine/pg"
	"github.com/rise-and-shine/recoengine/recommend"
	"github.com/rise-and-shine/recoengine/rediswr"
	"github.com/rise-and-shine/recoengine/selector"
	"github.com/rise-and-shine/recoengine/strategy"
	"github.com/rise-and-shine/recoengine/tracing"
	"github.com/rise-and-shine/recoengine/uow"
)

// Config is the whole engine configuration, one section per component.
type Config struct {
	Logger     logger.Config    `yaml:"logger"`
	Tracing    tracing.Config   `yaml:"tracing"`
	Postgres   pg.Config        `yaml:"postgres"`
	Redis      rediswr.Config   `yaml:"redis"`
	Cache      cache.Config     `yaml:"cache"`
	Events     events.Config    `yaml:"events"`
	Ingest     ingest.Config    `yaml:"ingest"`
	Selector   selector.Config  `yaml:"selector"`
	Strategies strategy.Config  `yaml:"strategies"`
	Recommend  recommend.Config `yaml:"recommend"`
	UnitOfWork uow.Config       `yaml:"unit_of_work"`
	Server     server.Config    `yaml:"server"`
}
