package channel

import (
	"errors"
	"testing"

	"github.com/stanza-md/stanza/engine"
)

func TestHub_CommitFansOutToOthers(t *testing.T) {
	h := NewHub(nil)
	names := []string{"alice", "bob", "carol"}
	members := make([]*MemberConn, len(names))
	recv := make([][]string, len(names))
	for i, name := range names {
		i := i // pre-go1.22 language level: give each callback its own index
		members[i] = h.Join(name)
		members[i].OnRemoteChange(func(text string) {
			recv[i] = append(recv[i], text)
		})
	}

	if err := members[0].Commit("hello"); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if got, want := len(recv[0]), 0; got != want {
		t.Fatalf("committer received %d texts, want %d", got, want)
	}
	for i := 1; i < len(names); i++ {
		if got, want := len(recv[i]), 1; got != want {
			t.Fatalf("%s received %d texts, want %d", names[i], got, want)
		}
		if got, want := recv[i][0], "hello"; got != want {
			t.Fatalf("%s received %q, want %q", names[i], got, want)
		}
	}
}

func TestMemberConn_CloseStopsDelivery(t *testing.T) {
	h := NewHub(nil)
	a := h.Join("a")
	b := h.Join("b")
	c := h.Join("c")
	var bGot, cGot []string
	b.OnRemoteChange(func(text string) { bGot = append(bGot, text) })
	c.OnRemoteChange(func(text string) { cGot = append(cGot, text) })

	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := a.Commit("after close"); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if got, want := len(bGot), 0; got != want {
		t.Fatalf("closed member received %d texts, want %d", got, want)
	}
	if got, want := len(cGot), 1; got != want {
		t.Fatalf("live member received %d texts, want %d", got, want)
	}
	if err := b.Commit("x"); !errors.Is(err, ErrClosed) {
		t.Fatalf("Commit after close = %v, want ErrClosed", err)
	}
}

func TestHub_SessionPairConverges(t *testing.T) {
	h := NewHub(nil)
	alice := h.Join("alice")
	bob := h.Join("bob")

	sa := engine.NewSession("# Shared\n\nnotes", engine.Options{Commit: alice.Commit})
	defer sa.Close()
	sb := engine.NewSession("# Shared\n\nnotes", engine.Options{Commit: bob.Commit})
	defer sb.Close()
	alice.OnRemoteChange(sa.HandleRemoteText)
	bob.OnRemoteChange(sb.HandleRemoteText)

	sa.ReplaceBlockMarkdown(0, "# Shared notes")
	sa.Flush()

	if got, want := sa.Document(), "# Shared notes"; got != want {
		t.Fatalf("editor document = %q, want %q", got, want)
	}
	if got, want := sb.Document(), sa.Document(); got != want {
		t.Fatalf("follower document = %q, want %q", got, want)
	}
}
