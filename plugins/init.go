// Package plugins links every built-in source and reporter into the binary.
// Each plugin registers itself from its own init function.
package plugins

import (
	_ "firestige.xyz/speadcap/plugins/reporter/console"
	_ "firestige.xyz/speadcap/plugins/reporter/kafka"
	_ "firestige.xyz/speadcap/plugins/reporter/nats"
	_ "firestige.xyz/speadcap/plugins/source/pcap"
	_ "firestige.xyz/speadcap/plugins/source/words"
)
