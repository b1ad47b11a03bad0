package logcontext

import "testing"

func TestContextAddRemoveSink(t *testing.T) {
	ctx := NewContext()
	sink := newRecordingSink()
	sink2 := newRecordingSink()
	sink3 := newRecordingSink()

	if !ctx.AddSink(sink) {
		t.Fatalf("expected first AddSink to succeed")
	}
	if ctx.AddSink(sink) {
		t.Fatalf("expected duplicate AddSink to fail")
	}
	if !ctx.AddSink(sink2) {
		t.Fatalf("expected AddSink(sink2) to succeed")
	}
	if !ctx.RemoveSink(sink) {
		t.Fatalf("expected RemoveSink(sink) to succeed")
	}
	if ctx.RemoveSink(sink3) {
		t.Fatalf("expected RemoveSink(sink3) to fail, it was never added")
	}
	if !ctx.RemoveSink(sink2) {
		t.Fatalf("expected RemoveSink(sink2) to succeed")
	}
}

func TestContextAddChannelDuplicateTopic(t *testing.T) {
	ctx := NewContext()
	ch := NewChannel("topic", "enc", nil, nil)
	if err := ctx.AddChannel(ch); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ch2 := NewChannel("topic", "enc", nil, nil)
	if err := ctx.AddChannel(ch2); err != ErrDuplicateTopic {
		t.Fatalf("expected ErrDuplicateTopic, got %v", err)
	}
}

func TestContextLogCallsAllSinks(t *testing.T) {
	ctx := NewContext()
	sink1 := newRecordingSink()
	sink2 := newRecordingSink()
	ctx.AddSink(sink1)
	ctx.AddSink(sink2)

	ch, err := ctx.NewChannel("topic", "enc", nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ch.Log([]byte("test_message"), PartialMetadata{})

	if len(sink1.snapshot()) != 1 || len(sink2.snapshot()) != 1 {
		t.Fatalf("expected both sinks to receive exactly one message")
	}
	if sink1.snapshot()[0].metadata.Sequence != sink2.snapshot()[0].metadata.Sequence {
		t.Fatalf("expected both sinks to observe the same sequence number")
	}
}

func TestContextSinkAttachedToChannelsRegisteredLater(t *testing.T) {
	ctx := NewContext()
	sink := newRecordingSink()
	ctx.AddSink(sink)

	ch, err := ctx.NewChannel("late-topic", "enc", nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ch.Log([]byte("hi"), PartialMetadata{})
	if len(sink.snapshot()) != 1 {
		t.Fatalf("expected sink added before the channel to still receive its messages")
	}
}

func TestContextSinkAttachedToChannelsRegisteredFirst(t *testing.T) {
	ctx := NewContext()
	ch, err := ctx.NewChannel("early-topic", "enc", nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sink := newRecordingSink()
	ctx.AddSink(sink)

	ch.Log([]byte("hi"), PartialMetadata{})
	if len(sink.snapshot()) != 1 {
		t.Fatalf("expected sink added after the channel to still receive its messages")
	}
}

func TestContextRemoveChannelForTopic(t *testing.T) {
	ctx := NewContext()
	if ctx.RemoveChannelForTopic("nope") {
		t.Fatalf("expected false for a topic that was never registered")
	}
	ch, _ := ctx.NewChannel("topic", "enc", nil, nil)
	if !ctx.RemoveChannelForTopic("topic") {
		t.Fatalf("expected true when removing a registered topic")
	}
	if _, ok := ctx.GetChannelByTopic("topic"); ok {
		t.Fatalf("expected topic to no longer be registered")
	}
	_ = ch
}

func TestContextClear(t *testing.T) {
	ctx := NewContext()
	sink := newRecordingSink()
	ctx.AddSink(sink)
	ctx.NewChannel("a", "enc", nil, nil)
	ctx.NewChannel("b", "enc", nil, nil)

	ctx.Clear()

	if len(ctx.Channels()) != 0 {
		t.Fatalf("expected no channels after Clear")
	}
	if ctx.RemoveSink(sink) {
		t.Fatalf("expected sink to already be detached after Clear")
	}
}
