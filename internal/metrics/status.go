package metrics

import "github.com/goodnatureofminers/swapindex/internal/swap/model"

const namespace = "swapindex"

func statusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func networkLabel(network model.Network) string {
	if network == "" {
		return "unknown"
	}
	return string(network)
}
