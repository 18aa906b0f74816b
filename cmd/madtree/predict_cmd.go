package main

import (
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/madlib/archived-madlib-sub001/config"
	"github.com/madlib/archived-madlib-sub001/dataset/csvsource"
	"github.com/madlib/archived-madlib-sub001/pkg/errors"
	"github.com/madlib/archived-madlib-sub001/pkg/log"
)

type predictCmdConfig struct {
	*rootCmdConfig
	model  string
	input  string
	output string
}

func predictCmd(rootConfig *rootCmdConfig) *cobra.Command {
	pc := &predictCmdConfig{rootCmdConfig: rootConfig}
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Predict the response of every record of a CSV file",
		Long:  `Encode every record of a CSV file the way the training data was encoded and write the prediction of the stored tree for each one. Records the tree cannot route get an empty prediction. When the file also holds the response column, accuracy or error metrics of the scored records are written to STDERR.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := pc.Validate(); err != nil {
				return err
			}
			ctx := cmd.Context()
			_, st, err := pc.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()
			t, err := st.Get(ctx, pc.model)
			if err != nil {
				return err
			}
			meta, err := loadModel(ctx, st, pc.model)
			if err != nil {
				return err
			}
			records, err := csvsource.ReadFile(pc.input)
			if err != nil {
				return err
			}

			preds := make([]csvsource.Prediction, len(records))
			var ev evaluation
			bad := 0
			for i, rec := range records {
				preds[i].Row = i + 1
				cat, con, err := meta.Encoding.Features(rec)
				if err == nil {
					var y float64
					if y, err = t.Predict(cat, con); err == nil {
						preds[i].Prediction = formatResponse(meta, y)
						if truth, ok := meta.Encoding.Response(rec); ok {
							score := 0.0
							if !t.Regression {
								proba, err := t.PredictProba(cat, con)
								if err != nil {
									return errors.Wrapf(err, "record %d", i+1)
								}
								if len(proba) > 1 {
									score = proba[1]
								}
							}
							ev.add(truth, y, score)
						}
						continue
					}
					// A broken tree is not a bad record.
					if errors.IsInvariantViolation(err) {
						return errors.Wrapf(err, "record %d", i+1)
					}
				}
				bad++
				log.GetLoggerWithName("madtree").Debug("Record not scored", "row", i+1, "error", err.Error())
			}
			if bad > 0 {
				errors.Warn(errors.NewWarning("predict", strconv.Itoa(bad)+" records could not be scored"))
			}
			if err := ev.report(cmd.ErrOrStderr(), meta); err != nil {
				return err
			}

			var out io.Writer = cmd.OutOrStdout()
			if pc.output != "" {
				f, err := os.Create(pc.output)
				if err != nil {
					return errors.Wrapf(err, "creating %s", pc.output)
				}
				defer f.Close()
				out = f
			}
			return csvsource.WritePredictions(out, preds)
		},
	}
	cmd.Flags().StringVarP(&(pc.model), "model", "m", "", "name of the stored model (required)")
	cmd.Flags().StringVarP(&(pc.input), "input", "i", "", "path to a CSV file with the feature columns (required)")
	cmd.Flags().StringVarP(&(pc.output), "output", "o", "", "path to write predictions to as CSV (defaults to STDOUT)")
	return cmd
}

func (pcc *predictCmdConfig) Validate() error {
	if pcc.model == "" {
		return errors.New("required model flag was not set")
	}
	if pcc.input == "" {
		return errors.New("required input flag was not set")
	}
	return nil
}

func formatResponse(meta *modelMeta, y float64) string {
	if meta.Task == config.Regression {
		return strconv.FormatFloat(y, 'g', -1, 64)
	}
	return meta.Encoding.ClassName(int(y))
}
