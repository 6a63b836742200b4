package main

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/pingcap/errors"
	"github.com/spf13/cobra"

	"uniactor/codec/bincodec"
	"uniactor/codec/textcodec"
	"uniactor/uniform"
)

// newCmdTypes 列出所有已注册的类型。
func newCmdTypes() *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List announced type names",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, ti := range uniform.Instances() {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", ti.Name(), ti.Type())
			}
			return nil
		},
	}
}

// newCmdEncode 把文本形式的对象编码为十六进制的二进制形式。
func newCmdEncode() *cobra.Command {
	return &cobra.Command{
		Use:     "encode <text>",
		Short:   "Encode a text object, e.g. '@i32 ( 7 )', into hex binary",
		Example: `  uniactor encode '@str ( "hello" )'`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := encodeText(strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
}

// newCmdDecode 把十六进制的二进制对象还原为文本形式。
func newCmdDecode() *cobra.Command {
	return &cobra.Command{
		Use:   "decode <hex>",
		Short: "Decode a hex binary object into its text form",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := decodeHex(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
}

func encodeText(text string) (string, error) {
	o, err := textcodec.FromString(text)
	if err != nil {
		return "", err
	}
	b, err := bincodec.Marshal(o.Type, o.Value)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func decodeHex(s string) (string, error) {
	b, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return "", errors.Annotate(err, "input is not hex")
	}
	o, err := bincodec.Unmarshal(b)
	if err != nil {
		return "", err
	}
	return textcodec.ToString(o.Type, o.Value)
}
