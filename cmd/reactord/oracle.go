package main

import (
	"math/big"
	"time"

	"gluon/config"
	"gluon/native/reactor"
)

// devOracle publishes a fixed configured price stamped at read time. It stands
// in for an external pull oracle on networks that do not have one; production
// deployments replace it behind the same interface.
type devOracle struct {
	mantissa int64
	exponent int32
	now      func() time.Time
}

func newDevOracle(cfg config.OracleConfig) *devOracle {
	return &devOracle{
		mantissa: cfg.PriceMantissa,
		exponent: cfg.PriceExponent,
		now:      time.Now,
	}
}

func (o *devOracle) sample() (reactor.PriceSample, error) {
	return reactor.PriceSample{
		Mantissa:    o.mantissa,
		Exponent:    o.exponent,
		PublishTime: o.now().Unix(),
	}, nil
}

func (o *devOracle) GetPriceUnsafe([32]byte) (reactor.PriceSample, error) {
	return o.sample()
}

func (o *devOracle) GetPriceNoOlderThan([32]byte, uint64) (reactor.PriceSample, error) {
	return o.sample()
}

func (o *devOracle) GetUpdateFee([][]byte) (*big.Int, error) {
	return big.NewInt(0), nil
}

func (o *devOracle) UpdatePriceFeeds([][]byte, *big.Int) error {
	return nil
}
