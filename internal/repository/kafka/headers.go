package kafka

import "github.com/segmentio/kafka-go"

// headerCarrier lets the otel propagator read and write Kafka headers
// directly. Set replaces an existing key instead of appending a duplicate.
type headerCarrier []kafka.Header

func (h headerCarrier) Get(k string) string {
	for _, x := range h {
		if x.Key == k {
			return string(x.Value)
		}
	}
	return ""
}

func (h *headerCarrier) Set(k, v string) {
	for i := range *h {
		if (*h)[i].Key == k {
			(*h)[i].Value = []byte(v)
			return
		}
	}
	*h = append(*h, kafka.Header{Key: k, Value: []byte(v)})
}

func (h headerCarrier) Keys() []string {
	ks := make([]string, 0, len(h))
	for _, x := range h {
		ks = append(ks, x.Key)
	}
	return ks
}
