// Package hintd embeds the hint engine in a Go program without running the
// HTTP service.
//
// A Client owns hint sessions. Each session is one loaded page whose iframes
// form a tree of document contexts; every context runs its own agent and the
// agents cooperate only through messages. Every Session call returns once the
// whole tree has settled.
//
//	client, _ := hintd.New(ctx, hintd.WithAlphabet("asdf"))
//	defer client.Close()
//
//	sess, _ := client.Open(ctx, hintd.Page{HTML: html, URL: "https://example.com/"})
//	state, _ := sess.Start(ctx, hintd.StartOptions{Strategy: hintd.Prefix})
//	state, _ = sess.Filter(ctx, state.Hints[0].Label)
//	state, _ = sess.Follow(ctx)
package hintd
