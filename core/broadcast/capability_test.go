package broadcast

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		hint ClientHint
		want string
	}{
		{"default general", ClientHint{}, "general"},
		{"desktop browser", ClientHint{UserAgent: "Mozilla/5.0 (X11; Linux x86_64) Firefox/115.0"}, "general"},
		{"android ua", ClientHint{UserAgent: "Mozilla/5.0 (Linux; Android 11) Mobile"}, "constrained"},
		{"iphone ua", ClientHint{UserAgent: "Mozilla/5.0 (iPhone; CPU iPhone OS 16_0)"}, "constrained"},
		{"curl ua", ClientHint{UserAgent: "curl/8.0.1"}, "constrained"},
		{"websocket transport", ClientHint{Transport: TransportWebSocket}, "websocket"},
		{"explicit override beats ua", ClientHint{UserAgent: "curl/8.0.1", ProfileParam: "general"}, "general"},
		{"explicit override beats transport", ClientHint{Transport: TransportWebSocket, ProfileParam: "constrained"}, "constrained"},
		{"override case-insensitive", ClientHint{ProfileParam: "Constrained"}, "constrained"},
		{"unknown override ignored", ClientHint{ProfileParam: "turbo"}, "general"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.hint); got.Name != tt.want {
				t.Errorf("Classify(%+v) = %s, want %s", tt.hint, got.Name, tt.want)
			}
		})
	}
}

func TestProfileShapes(t *testing.T) {
	// 受限档位的块和队列都必须小于普通档位，否则分档无意义
	if ProfileConstrained.ChunkSize >= ProfileGeneral.ChunkSize {
		t.Error("constrained chunk size should be smaller than general")
	}
	if ProfileConstrained.QueueDepth >= ProfileGeneral.QueueDepth {
		t.Error("constrained queue depth should be smaller than general")
	}
	if ProfileConstrained.HeartbeatInterval >= ProfileGeneral.HeartbeatInterval {
		t.Error("constrained heartbeat should be more frequent than general")
	}
}
