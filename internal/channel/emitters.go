package channel

// Emitters fans every event out to each sink in order.
type Emitters []Emitter

func (e Emitters) OnMessage(jid string, msg InboundMessage) {
	for _, sink := range e {
		sink.OnMessage(jid, msg)
	}
}

func (e Emitters) OnChatMetadata(meta ChatMetadata) {
	for _, sink := range e {
		sink.OnChatMetadata(meta)
	}
}

// EmitterFuncs adapts plain functions to Emitter. Nil fields are ignored.
type EmitterFuncs struct {
	Message  func(jid string, msg InboundMessage)
	Metadata func(meta ChatMetadata)
}

func (f EmitterFuncs) OnMessage(jid string, msg InboundMessage) {
	if f.Message != nil {
		f.Message(jid, msg)
	}
}

func (f EmitterFuncs) OnChatMetadata(meta ChatMetadata) {
	if f.Metadata != nil {
		f.Metadata(meta)
	}
}
