package tools

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/DeusData/gradle-model-mcp/internal/buildmodel"
	"github.com/DeusData/gradle-model-mcp/internal/pipeline"
	"github.com/DeusData/gradle-model-mcp/internal/store"
)

type propertyInfo struct {
	Name       string `json:"name"`
	Value      string `json:"value"`
	Unresolved bool   `json:"unresolved,omitempty"`
}

type androidInfo struct {
	Namespace         string   `json:"namespace,omitempty"`
	CompileSdkVersion string   `json:"compile_sdk_version,omitempty"`
	BuildToolsVersion string   `json:"build_tools_version,omitempty"`
	ApplicationID     string   `json:"application_id,omitempty"`
	MinSdkVersion     string   `json:"min_sdk_version,omitempty"`
	TargetSdkVersion  string   `json:"target_sdk_version,omitempty"`
	VersionCode       string   `json:"version_code,omitempty"`
	VersionName       string   `json:"version_name,omitempty"`
	BuildTypes        []string `json:"build_types,omitempty"`
	FlavorDimensions  []string `json:"flavor_dimensions,omitempty"`
	ProductFlavors    []string `json:"product_flavors,omitempty"`
	SigningConfigs    []string `json:"signing_configs,omitempty"`
	CMakePath         string   `json:"cmake_path,omitempty"`
	NdkBuildPath      string   `json:"ndk_build_path,omitempty"`
}

type buildModelInfo struct {
	*store.Module
	State   string         `json:"state"`
	Ext     []propertyInfo `json:"ext,omitempty"`
	Android *androidInfo   `json:"android,omitempty"`
}

func summarizeAndroid(a *buildmodel.AndroidModel) *androidInfo {
	if !a.Exists() {
		return nil
	}
	dc := a.DefaultConfig()
	info := &androidInfo{
		Namespace:         a.Namespace().Value,
		CompileSdkVersion: a.CompileSdkVersion().Value,
		BuildToolsVersion: a.BuildToolsVersion().Value,
		ApplicationID:     dc.ApplicationID().Value,
		MinSdkVersion:     dc.MinSdkVersion().Value,
		TargetSdkVersion:  dc.TargetSdkVersion().Value,
		VersionCode:       dc.VersionCode().Value,
		VersionName:       dc.VersionName().Value,
	}
	for _, bt := range a.BuildTypes() {
		info.BuildTypes = append(info.BuildTypes, bt.Name())
	}
	for _, d := range a.FlavorDimensions() {
		info.FlavorDimensions = append(info.FlavorDimensions, d.Value)
	}
	for _, pf := range a.ProductFlavors() {
		info.ProductFlavors = append(info.ProductFlavors, pf.Name())
	}
	for _, sc := range a.SigningConfigs() {
		info.SigningConfigs = append(info.SigningConfigs, sc.Name())
	}
	native := a.ExternalNativeBuild()
	info.CMakePath = native.CMake().Path().Value
	info.NdkBuildPath = native.NdkBuild().Path().Value
	return info
}

func (s *Server) handleGetBuildModel(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}
	proj, res := s.project(args)
	if res != nil {
		return res, nil
	}
	modulePath := moduleArg(args)

	var info buildModelInfo
	err = s.withBuild(proj.RootPath, func(bc *buildmodel.Context) error {
		return bc.Read(func() error {
			m, err := bc.ModuleModel(modulePath)
			if err != nil {
				return err
			}
			mod := pipeline.ExtractModule(m, modulePath)
			mod.Project = proj.Name
			info = buildModelInfo{
				Module:  mod,
				State:   m.State().String(),
				Android: summarizeAndroid(m.Android()),
			}
			for _, p := range m.Ext().Properties() {
				info.Ext = append(info.Ext, propertyInfo{Name: p.Name, Value: p.Value, Unresolved: p.Unresolved})
			}
			return nil
		})
	})
	if err != nil {
		return errResult(fmt.Sprintf("build model %s: %v", modulePath, err)), nil
	}
	return jsonResult(info), nil
}

func (s *Server) handleResolveProperty(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}
	proj, res := s.project(args)
	if res != nil {
		return res, nil
	}
	name := getStringArg(args, "name")
	if name == "" {
		return errResult("name is required"), nil
	}
	modulePath := moduleArg(args)

	var prop buildmodel.Property
	err = s.withBuild(proj.RootPath, func(bc *buildmodel.Context) error {
		return bc.Read(func() error {
			m, err := bc.ModuleModel(modulePath)
			if err != nil {
				return err
			}
			prop = m.Ext().Property(name)
			return nil
		})
	})
	if err != nil {
		return errResult(fmt.Sprintf("resolve %s in %s: %v", name, modulePath, err)), nil
	}

	out := map[string]any{
		"module":     modulePath,
		"name":       name,
		"value":      prop.Value,
		"found":      prop.Element != nil,
		"unresolved": prop.Unresolved,
	}
	if decl := prop.Element; decl != nil {
		for decl.Origin() != nil {
			decl = decl.Origin()
		}
		if f := decl.File(); f != nil {
			if rel, err := filepath.Rel(proj.RootPath, f.Path); err == nil {
				out["declared_in"] = filepath.ToSlash(rel)
			}
		}
	}
	return jsonResult(out), nil
}
