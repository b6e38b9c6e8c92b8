package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/cppla/myblog/client"
	"github.com/cppla/myblog/submission"
	"github.com/cppla/myblog/upload"
)

// Mirrors the server's default policy so a bad file fails before any bytes are sent.
var cliPolicy = upload.Policy{MaxSize: 10 << 20, Accept: []string{"image/*"}}

func newForm(c *client.Client, w submission.Writer, opts ...submission.Option) *submission.Form {
	draft := upload.NewDraft(c.Storage(""), upload.WithPolicy(cliPolicy))
	return submission.New(w, draft, opts...)
}

// submitForm attaches the optional image and submits; the upload always lands first.
func submitForm(form *submission.Form, image string) uint {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if image != "" {
		f, err := upload.FileFromPath(image)
		if err != nil {
			outputErrorAndExit("Error reading %s: %v", image, err)
		}
		if err := form.Attach(ctx, f); err != nil {
			outputErrorAndExit("%v", err)
		}
		fmt.Printf("📎 Uploading %s\n", f.Name)
	}

	id, err := form.Submit(ctx)
	if err != nil {
		outputErrorAndExit("Error submitting: %v", err)
	}
	return id
}
