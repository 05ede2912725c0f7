package testutil

import (
	"time"

	"pixellocker/pkg/domain"
)

// Well-known principals for deterministic tests (EIP-55 test vectors).
var (
	Alice = domain.MustParseAddress("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")
	Bob   = domain.MustParseAddress("0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359")
	Carol = domain.MustParseAddress("0xdbF03B407c01E7cD3CBea99509d93f8DDDC8C6FB")
	Dave  = domain.MustParseAddress("0xD1220A0cf47c7B9Be7A2E6BA89F429762e7b9aDb")
)

// FixedTime is the default evaluation instant for time-dependent tests.
var FixedTime = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
