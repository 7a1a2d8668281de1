package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/admitline/admitline/pkg/cli"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration contexts",
}

var (
	addServer     string
	addDataDir    string
	addInference  []string
	addModels     []string
	addFactsFile  string
	addTTSKey     string
	addVoice      string
	addDocsDir    string
	addBucket     string
	addPrefix     string
	addRegion     string
	addEndpoint   string
	addRoomKey    string
	addRoomSecret string
)

var addContextCmd = &cobra.Command{
	Use:   "add-context <name>",
	Short: "Add or replace a context",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		ctx := &cli.Context{
			Server:    addServer,
			DataDir:   addDataDir,
			Models:    addModels,
			FactsFile: addFactsFile,
			TTS:       cli.TTSConfig{APIKey: addTTSKey, VoiceID: addVoice},
			Docs: cli.DocsConfig{
				Dir:      addDocsDir,
				Bucket:   addBucket,
				Prefix:   addPrefix,
				Region:   addRegion,
				Endpoint: addEndpoint,
			},
			Room: cli.RoomConfig{APIKey: addRoomKey, APISecret: addRoomSecret},
		}
		for i, key := range addInference {
			ctx.Inference = append(ctx.Inference, cli.InferenceCredential{
				Name:   fmt.Sprintf("key-%d", i+1),
				APIKey: key,
			})
		}
		if err := globalConfig.AddContext(args[0], ctx); err != nil {
			return err
		}
		fmt.Println(cli.Success("context " + args[0] + " saved"))
		return nil
	},
}

var useContextCmd = &cobra.Command{
	Use:   "use-context <name>",
	Short: "Switch the current context",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		if err := globalConfig.UseContext(args[0]); err != nil {
			return err
		}
		fmt.Println(cli.Success("switched to context " + args[0]))
		return nil
	},
}

var deleteContextCmd = &cobra.Command{
	Use:   "delete-context <name>",
	Short: "Remove a context",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		if err := globalConfig.DeleteContext(args[0]); err != nil {
			return err
		}
		fmt.Println(cli.Success("context " + args[0] + " deleted"))
		return nil
	},
}

var viewConfigCmd = &cobra.Command{
	Use:   "view",
	Short: "Show contexts",
	RunE: func(_ *cobra.Command, _ []string) error {
		fmt.Println(cli.Title("contexts") + " " + cli.Dim("("+globalConfig.Path()+")"))
		for name := range globalConfig.Contexts {
			marker := "  "
			if name == globalConfig.CurrentContext {
				marker = "* "
			}
			fmt.Println(marker + name)
		}
		return nil
	},
}

func init() {
	addContextCmd.Flags().StringVar(&addServer, "server", ":8080", "HTTP listen address")
	addContextCmd.Flags().StringVar(&addDataDir, "data-dir", "", "database directory")
	addContextCmd.Flags().StringArrayVar(&addInference, "inference-key", nil, "inference API key (repeat for fallback order)")
	addContextCmd.Flags().StringArrayVar(&addModels, "model", nil, "model name (repeat for fallback order)")
	addContextCmd.Flags().StringVar(&addFactsFile, "facts-file", "", "file of pinned answer facts (overrides built-ins)")
	addContextCmd.Flags().StringVar(&addTTSKey, "tts-key", "", "speech synthesis API key")
	addContextCmd.Flags().StringVar(&addVoice, "voice", "", "speech synthesis voice ID")
	addContextCmd.Flags().StringVar(&addDocsDir, "docs-dir", "", "local document directory")
	addContextCmd.Flags().StringVar(&addBucket, "bucket", "", "S3 bucket for documents")
	addContextCmd.Flags().StringVar(&addPrefix, "prefix", "", "S3 key prefix")
	addContextCmd.Flags().StringVar(&addRegion, "region", "", "S3 region")
	addContextCmd.Flags().StringVar(&addEndpoint, "endpoint", "", "S3-compatible endpoint URL")
	addContextCmd.Flags().StringVar(&addRoomKey, "room-key", "", "media server API key")
	addContextCmd.Flags().StringVar(&addRoomSecret, "room-secret", "", "media server API secret")

	configCmd.AddCommand(addContextCmd)
	configCmd.AddCommand(useContextCmd)
	configCmd.AddCommand(deleteContextCmd)
	configCmd.AddCommand(viewConfigCmd)
}
