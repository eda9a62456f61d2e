package doc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/ValentinKolb/dTxn/cmd/util"
	document "github.com/ValentinKolb/dTxn/lib/doc"
	"github.com/ValentinKolb/dTxn/lib/expr"
	"github.com/ValentinKolb/dTxn/lib/txn"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	getCmd = &cobra.Command{
		Use:   "get [id]",
		Short: "Reads a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := request(cmd.Context(), "GET", docPath(args[0]), nil)
			if err != nil {
				return err
			}
			return printDoc(d)
		},
	}
	putCmd = &cobra.Command{
		Use:   "put [id] [json]",
		Short: "Replaces the content of a document (in a transaction)",
		Long: `Replaces the content of a document with the given JSON object.
The current revision is fetched and retried on conflicts, so the write
never fails because of a concurrent update. Use --create for new documents.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := document.Decode([]byte(args[1]))
			if err != nil {
				return err
			}
			res, err := txn.Do(cmd.Context(), txn.Request{ID: args[0], Name: "put"},
				func(context.Context, document.Document) (document.Document, error) {
					return content.Clone(), nil
				}, txnConfig)
			if err != nil {
				return err
			}
			return printResult(res)
		},
	}
	updateCmd = &cobra.Command{
		Use:   "update [id] [expression]",
		Short: "Updates a document with a CEL expression",
		Long: `Updates a document with a CEL expression. The expression sees the
document as 'doc' and returns a map of fields to set (null removes a field),
e.g. '{"val": doc.val + 3.0}'. The update is retried on conflicts.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			op, err := expr.Compile(args[1])
			if err != nil {
				return err
			}
			res, err := txn.Do(cmd.Context(), txn.Request{ID: args[0], Name: "update"}, op, txnConfig)
			if err != nil {
				return err
			}
			return printResult(res)
		},
	}
	mapCmd = &cobra.Command{
		Use:   "map [expression] [id]...",
		Short: "Updates many documents concurrently with a CEL expression",
		Long: `Runs one transaction per id, all with the same CEL expression.
The first failing transaction cancels the others.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			op, err := expr.Compile(args[0])
			if err != nil {
				return err
			}
			reqs := make([]txn.Request, len(args)-1)
			for i, id := range args[1:] {
				reqs[i] = txn.Request{ID: id, Name: "map"}
			}

			start := time.Now()
			results, err := txn.Map(cmd.Context(), reqs, op, txnConfig)
			if err != nil {
				return err
			}
			for _, res := range results {
				if err := printResult(res); err != nil {
					return err
				}
			}
			fmt.Printf("mapped %d documents in %s\n", len(results), time.Since(start))
			return nil
		},
	}
	delCmd = &cobra.Command{
		Use:   "del [id] [rev]",
		Short: "Deletes a document (the current revision is used if rev is omitted)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var rev string
			if len(args) == 2 {
				rev = args[1]
			}
			if err := deleteDoc(cmd.Context(), args[0], rev); err != nil {
				return err
			}
			fmt.Println("delete successfully")
			return nil
		},
	}
)

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func docPath(id string) string {
	return "/" + util.GetDatabase() + "/" + txn.EncodeID(id)
}

// request sends a plain request and maps error replies to *txn.StatusError
func request(ctx context.Context, method, uri string, body []byte) (document.Document, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, time.Duration(viper.GetInt("timeout"))*time.Second)
	defer cancel()

	status, resp, err := clientTransport.Do(ctx, method, uri, body)
	if err != nil {
		return nil, err
	}
	d, err := document.Decode(resp)
	if err != nil {
		return nil, fmt.Errorf("%s %s: bad response (status %d): %w", method, uri, status, err)
	}
	if status < 200 || status > 299 {
		name, _ := d["error"].(string)
		reason, _ := d["reason"].(string)
		return d, &txn.StatusError{Status: status, Name: name, Reason: reason}
	}
	return d, nil
}

// deleteDoc deletes id at rev, or at its current revision if rev is empty
func deleteDoc(ctx context.Context, id, rev string) error {
	if rev == "" {
		d, err := request(ctx, "GET", docPath(id), nil)
		if err != nil {
			return err
		}
		rev = d.Rev()
	}
	_, err := request(ctx, "DELETE", docPath(id)+"?rev="+url.QueryEscape(rev), nil)
	return err
}

func printDoc(d document.Document) error {
	out, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func printResult(res *txn.Result) error {
	fmt.Printf("id=%s, rev=%s, create=%t, tries=%d, fetches=%d, stores=%d\n",
		res.Doc.ID(), res.Doc.Rev(), res.IsCreate, res.Tries, res.Fetches, res.Stores)
	return printDoc(res.Doc)
}
