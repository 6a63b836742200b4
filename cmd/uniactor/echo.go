package main

import (
	"context"
	"fmt"
	"time"

	"github.com/pingcap/log"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"uniactor/actor"
	"uniactor/codec/textcodec"
	"uniactor/message"
)

type echoOptions struct {
	root    *rootOptions
	timeout time.Duration
	times   int
}

func (o *echoOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().DurationVar(&o.timeout, "timeout", 3*time.Second, "Deadline of each request")
	cmd.Flags().IntVar(&o.times, "times", 1, "Number of requests to send")
}

// run 按配置启动一个系统，向回显 Actor 发出请求并打印回复的文本形式。
func (o *echoOptions) run(cmd *cobra.Command, args []string) (err error) {
	sys, err := actor.NewSystemFromConfig(o.root.cfg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, sys.Shutdown()) }()

	echo, err := sys.Spawn(actor.BaseActorOptions{
		Name: "echo",
		Behavior: actor.NewBehavior(actor.OnAny(func(_ *actor.Context, m message.Message) actor.Result {
			return actor.ReplyMessage(m)
		})),
	})
	if err != nil {
		return err
	}
	vals := make([]any, 0, len(args))
	for _, a := range args {
		vals = append(vals, a)
	}
	for i := 0; i < o.times; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
		reply, err := sys.Request(ctx, echo.ID(), vals...)
		cancel()
		if err != nil {
			return err
		}
		text, err := textcodec.ToString(message.Descriptor(), &reply)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), text)
	}
	log.Debug("echo finished", zap.Int("requests", o.times))
	return nil
}

func newCmdEcho(root *rootOptions) *cobra.Command {
	o := &echoOptions{root: root}
	cmd := &cobra.Command{
		Use:   "echo <words>...",
		Short: "Send the words to a local echo actor and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, args)
		},
	}
	o.addFlags(cmd)
	return cmd
}
