package cellctl

import (
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof/* on DefaultServeMux

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

var putCmd = &cobra.Command{
	Use:   "put <key> <value>",
	Short: "store a value under key",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, closer, err := openRegistry(cfg)
		if err != nil {
			return err
		}
		defer closer()
		return r.Put(cmd.Context(), args[0], args[1])
	},
}

var getCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "fetch the value stored under key, loading through to the store on a miss",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, closer, err := openRegistry(cfg)
		if err != nil {
			return err
		}
		defer closer()
		v, ok, err := r.GetOrLoad(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("cellctl: key %q not found", args[0])
		}
		fmt.Println(v)
		return nil
	},
}

var delCmd = &cobra.Command{
	Use:   "del <key>",
	Short: "remove a key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, closer, err := openRegistry(cfg)
		if err != nil {
			return err
		}
		defer closer()
		_, ok, err := r.Remove(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("cellctl: key %q not found", args[0])
		}
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "print the number of resident entries",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		r, closer, err := openRegistry(cfg)
		if err != nil {
			return err
		}
		defer closer()
		fmt.Println(r)
		return nil
	},
}

var serveAddr string
var servePprofAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "keep the registry warm and expose Prometheus metrics (and optionally pprof)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		r, closer, err := openRegistry(cfg)
		if err != nil {
			return err
		}
		defer closer()

		if servePprofAddr != "" {
			go func() {
				log.Printf("cellctl: pprof serving at %s", servePprofAddr)
				log.Println(http.ListenAndServe(servePprofAddr, nil))
			}()
		}

		http.Handle("/metrics", promhttp.Handler())
		log.Printf("cellctl: metrics serving at %s (registry resident=%d)", serveAddr, r.Len())
		return http.ListenAndServe(serveAddr, nil)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "http", ":8080", "address to serve Prometheus metrics on")
	serveCmd.Flags().StringVar(&servePprofAddr, "pprof", "", "address to serve pprof on (empty = disabled)")
}
