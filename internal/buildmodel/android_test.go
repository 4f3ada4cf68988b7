package buildmodel

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const androidBuild = `android {
    namespace 'com.example.app'
    compileSdkVersion 33
    buildToolsVersion "33.0.1"
    defaultConfig {
        applicationId "com.example.app"
        minSdkVersion 21
        targetSdk 33
        versionCode 7
        versionName "1.7"
    }
    flavorDimensions "tier", "region"
    buildTypes {
        release {
            minifyEnabled true
            proguardFiles getDefaultProguardFile('proguard-android.txt'), 'proguard-rules.pro'
        }
        debug {
        }
    }
}
`

func propValues(ps []Property) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Value
	}
	return out
}

func TestAndroidRead(t *testing.T) {
	ctx := newTestContext(t, map[string]string{"build.gradle": androidBuild})
	m := mustBuildModel(t, ctx, "build.gradle")
	a := m.Android()
	if !a.Exists() {
		t.Fatal("android block not found")
	}
	dc := a.DefaultConfig()
	got := map[string]string{
		"namespace":         a.Namespace().Value,
		"compileSdkVersion": a.CompileSdkVersion().Value,
		"buildToolsVersion": a.BuildToolsVersion().Value,
		"applicationId":     dc.ApplicationID().Value,
		"minSdkVersion":     dc.MinSdkVersion().Value,
		"targetSdkVersion":  dc.TargetSdkVersion().Value,
		"versionCode":       dc.VersionCode().Value,
		"versionName":       dc.VersionName().Value,
	}
	want := map[string]string{
		"namespace":         "com.example.app",
		"compileSdkVersion": "33",
		"buildToolsVersion": "33.0.1",
		"applicationId":     "com.example.app",
		"minSdkVersion":     "21",
		"targetSdkVersion":  "33",
		"versionCode":       "7",
		"versionName":       "1.7",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("android properties (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"tier", "region"}, propValues(a.FlavorDimensions())); diff != "" {
		t.Errorf("flavorDimensions (-want +got):\n%s", diff)
	}

	bts := a.BuildTypes()
	var names []string
	for _, bt := range bts {
		names = append(names, bt.Name())
	}
	if diff := cmp.Diff([]string{"release", "debug"}, names); diff != "" {
		t.Fatalf("build types (-want +got):\n%s", diff)
	}
	release := a.BuildType("release")
	if got := release.MinifyEnabled().Value; got != "true" {
		t.Errorf("release minifyEnabled = %q", got)
	}
	if diff := cmp.Diff([]string{"proguard-android.txt", "proguard-rules.pro"}, propValues(release.ProguardFiles())); diff != "" {
		t.Errorf("proguardFiles (-want +got):\n%s", diff)
	}
	if a.BuildType("debug").MinifyEnabled().IsSet() {
		t.Error("debug minifyEnabled should be unset")
	}
}

func TestAndroidEditsGroovy(t *testing.T) {
	ctx := newTestContext(t, map[string]string{"build.gradle": androidBuild})
	m := mustBuildModel(t, ctx, "build.gradle")
	a := m.Android()
	a.SetCompileSdkVersion(34)
	a.DefaultConfig().SetMinSdkVersion(24)
	a.DefaultConfig().SetTargetSdkVersion(34)
	a.BuildType("debug").SetMinifyEnabled(false)
	a.BuildType("release").AddProguardFile("extra-rules.pro")
	a.AddFlavorDimension("tier")

	got := m.Text()
	for _, want := range []string{
		"    compileSdkVersion 34\n",
		"        minSdkVersion 24\n",
		"        targetSdk 34\n",
		"        debug {\n            minifyEnabled false\n        }\n",
		"'proguard-rules.pro', 'extra-rules.pro'\n",
		"    flavorDimensions \"tier\", \"region\"\n",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("Text() missing %q:\n%s", want, got)
		}
	}
}

func TestAndroidOnEmptyKotlinFile(t *testing.T) {
	ctx := newTestContext(t, nil)
	m := mustBuildModel(t, ctx, "build.gradle.kts")
	a := m.Android()
	if a.Exists() || a.CompileSdkVersion().IsSet() {
		t.Fatal("android reported on an empty file")
	}
	a.SetNamespace("com.x")
	a.SetCompileSdkVersion(34)
	a.DefaultConfig().SetApplicationID("com.x.app")

	want := "android {\n    namespace = \"com.x\"\n    compileSdk = 34\n    defaultConfig {\n        applicationId = \"com.x.app\"\n    }\n}\n"
	if got := m.Text(); got != want {
		t.Errorf("Text() = %q, want %q", got, want)
	}
	if got := a.CompileSdkVersion().Value; got != "34" {
		t.Errorf("CompileSdkVersion after set = %q", got)
	}
}

func TestAddBuildType(t *testing.T) {
	tests := []struct {
		file string
		want string
	}{
		{"build.gradle", "android {\n    buildTypes {\n        staging {\n            minifyEnabled true\n        }\n    }\n}\n"},
		{"build.gradle.kts", "android {\n    buildTypes {\n        create(\"staging\") {\n            isMinifyEnabled = true\n        }\n    }\n}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			ctx := newTestContext(t, nil)
			m := mustBuildModel(t, ctx, tt.file)
			bt := m.Android().AddBuildType("staging")
			bt.SetMinifyEnabled(true)
			if got := m.Text(); got != tt.want {
				t.Errorf("Text() = %q, want %q", got, tt.want)
			}
			if again := m.Android().AddBuildType("staging"); again.Element() != bt.Element() {
				t.Error("AddBuildType declared the build type twice")
			}
		})
	}
}

func TestKotlinBuildTypeAccessors(t *testing.T) {
	ctx := newTestContext(t, map[string]string{"build.gradle.kts": `android {
    buildTypes {
        getByName("release") {
            isMinifyEnabled = true
        }
    }
}
`})
	m := mustBuildModel(t, ctx, "build.gradle.kts")
	bt := m.Android().BuildType("release")
	if bt == nil {
		t.Fatal("release build type not found")
	}
	if got := bt.MinifyEnabled().Value; got != "true" {
		t.Errorf("isMinifyEnabled = %q", got)
	}
}

const androidVariants = `android {
    signingConfigs {
        upload {
            storeFile file('release.jks')
            storePassword 'secret'
            keyAlias 'key0'
            keyPassword 'keypass'
        }
    }
    flavorDimensions 'tier'
    productFlavors {
        free {
            dimension 'tier'
            applicationId 'com.example.free'
        }
        paid {
            dimension 'tier'
            minSdkVersion 24
        }
    }
    buildTypes {
        release {
            signingConfig signingConfigs.upload
        }
    }
    externalNativeBuild {
        cmake {
            path 'src/main/cpp/CMakeLists.txt'
            version '3.22.1'
        }
    }
}
`

func TestAndroidVariantsRead(t *testing.T) {
	ctx := newTestContext(t, map[string]string{"build.gradle": androidVariants})
	m := mustBuildModel(t, ctx, "build.gradle")
	a := m.Android()

	var flavors []string
	for _, pf := range a.ProductFlavors() {
		flavors = append(flavors, pf.Name()+":"+pf.Dimension().Value)
	}
	if diff := cmp.Diff([]string{"free:tier", "paid:tier"}, flavors); diff != "" {
		t.Errorf("product flavors (-want +got):\n%s", diff)
	}
	if got := a.ProductFlavor("free").ApplicationID().Value; got != "com.example.free" {
		t.Errorf("free applicationId = %q", got)
	}
	if got := a.ProductFlavor("paid").MinSdkVersion().Value; got != "24" {
		t.Errorf("paid minSdkVersion = %q", got)
	}
	if a.ProductFlavor("missing") != nil {
		t.Error("unknown flavor reported")
	}

	sc := a.SigningConfig("upload")
	if sc == nil {
		t.Fatal("signing config not found")
	}
	got := map[string]string{
		"storeFile":     sc.StoreFile().Value,
		"storePassword": sc.StorePassword().Value,
		"keyAlias":      sc.KeyAlias().Value,
		"keyPassword":   sc.KeyPassword().Value,
	}
	want := map[string]string{
		"storeFile":     "release.jks",
		"storePassword": "secret",
		"keyAlias":      "key0",
		"keyPassword":   "keypass",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("signing config (-want +got):\n%s", diff)
	}
	if sc.StoreType().IsSet() {
		t.Error("storeType should be unset")
	}
	if got := a.BuildType("release").SigningConfig().Value; got != "upload" {
		t.Errorf("release signingConfig = %q", got)
	}

	cmake := a.ExternalNativeBuild().CMake()
	if got := cmake.Path().Value; got != "src/main/cpp/CMakeLists.txt" {
		t.Errorf("cmake path = %q", got)
	}
	if got := cmake.Version().Value; got != "3.22.1" {
		t.Errorf("cmake version = %q", got)
	}
	if a.ExternalNativeBuild().NdkBuild().Path().IsSet() {
		t.Error("ndkBuild path should be unset")
	}
}

func TestSigningConfigResolvesEarlierVariables(t *testing.T) {
	ctx := newTestContext(t, map[string]string{"build.gradle": `def var1 = 'store.jks'
def greeting = var1
android {
    signingConfigs {
        release {
            storeFile file(greeting)
            keyAlias greeting
        }
    }
}
`})
	m := mustBuildModel(t, ctx, "build.gradle")
	sc := m.Android().SigningConfig("release")
	if got := sc.StoreFile(); got.Value != "store.jks" || got.Unresolved {
		t.Errorf("storeFile = %+v", got)
	}
	if got := sc.KeyAlias().Value; got != "store.jks" {
		t.Errorf("keyAlias = %q", got)
	}
}

func TestAddProductFlavorAndSigningConfig(t *testing.T) {
	tests := []struct {
		file string
		want string
	}{
		{"build.gradle", `android {
    productFlavors {
        demo {
            dimension 'tier'
        }
    }
    signingConfigs {
        upload {
            storeFile 'upload.jks'
            keyAlias 'key0'
        }
    }
    buildTypes {
        release {
            signingConfig signingConfigs.upload
        }
    }
}
`},
		{"build.gradle.kts", `android {
    productFlavors {
        create("demo") {
            dimension = "tier"
        }
    }
    signingConfigs {
        create("upload") {
            storeFile = file("upload.jks")
            keyAlias = "key0"
        }
    }
    buildTypes {
        create("release") {
            signingConfig = signingConfigs.getByName("upload")
        }
    }
}
`},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			ctx := newTestContext(t, nil)
			m := mustBuildModel(t, ctx, tt.file)
			a := m.Android()
			a.AddProductFlavor("demo").SetDimension("tier")
			sc := a.AddSigningConfig("upload")
			sc.SetStoreFile("upload.jks")
			sc.SetKeyAlias("key0")
			a.AddBuildType("release").SetSigningConfig("upload")

			if got := m.Text(); got != tt.want {
				t.Errorf("Text() = %q, want %q", got, tt.want)
			}
			if got := a.ProductFlavor("demo").Dimension().Value; got != "tier" {
				t.Errorf("demo dimension = %q", got)
			}
			if got := a.SigningConfig("upload").StoreFile().Value; got != "upload.jks" {
				t.Errorf("storeFile = %q", got)
			}
			if got := a.BuildType("release").SigningConfig().Value; got != "upload" {
				t.Errorf("release signingConfig = %q", got)
			}
			if again := a.AddProductFlavor("demo"); again.block() != a.ProductFlavor("demo").block() {
				t.Error("AddProductFlavor declared the flavor twice")
			}
		})
	}
}

func TestExternalNativeBuildPath(t *testing.T) {
	tests := []struct {
		file string
		set  string
		want string
	}{
		{"build.gradle", "android {\n    externalNativeBuild {\n        ndkBuild {\n            path 'Android.mk'\n        }\n    }\n}\n", "android {\n    externalNativeBuild {\n        ndkBuild {\n        }\n    }\n}\n"},
		{"build.gradle.kts", "android {\n    externalNativeBuild {\n        ndkBuild {\n            path = file(\"Android.mk\")\n        }\n    }\n}\n", "android {\n    externalNativeBuild {\n        ndkBuild {\n        }\n    }\n}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			ctx := newTestContext(t, nil)
			m := mustBuildModel(t, ctx, tt.file)
			ndk := m.Android().ExternalNativeBuild().NdkBuild()
			ndk.SetPath("Android.mk")
			if got := m.Text(); got != tt.set {
				t.Fatalf("Text() after SetPath = %q, want %q", got, tt.set)
			}
			if got := ndk.Path().Value; got != "Android.mk" {
				t.Errorf("Path() = %q", got)
			}
			ndk.RemovePath()
			if got := m.Text(); got != tt.want {
				t.Errorf("Text() after RemovePath = %q, want %q", got, tt.want)
			}
			if ndk.Path().IsSet() {
				t.Error("path still set after RemovePath")
			}
		})
	}
}

func TestExternalNativeBuildSetPathInPlace(t *testing.T) {
	ctx := newTestContext(t, map[string]string{"build.gradle": androidVariants})
	m := mustBuildModel(t, ctx, "build.gradle")
	cmake := m.Android().ExternalNativeBuild().CMake()
	cmake.SetPath("CMakeLists.txt")
	if err := m.ApplyChanges(); err != nil {
		t.Fatalf("ApplyChanges: %v", err)
	}
	if got := readFile(t, ctx, "build.gradle"); !strings.Contains(got, "            path 'CMakeLists.txt'\n") {
		t.Errorf("written file:\n%s", got)
	}
	if got := m.Android().ExternalNativeBuild().CMake().Path().Value; got != "CMakeLists.txt" {
		t.Errorf("Path() after write = %q", got)
	}
}

func TestSingleLineAndroidEditsSurviveWrite(t *testing.T) {
	tests := []struct {
		name   string
		file   string
		text   string
		mutate func(a *AndroidModel)
		want   string
	}{
		{
			name:   "dimension list",
			file:   "build.gradle",
			text:   "android { flavorDimensions 'a' }\n",
			mutate: func(a *AndroidModel) { a.AddFlavorDimension("b") },
			want:   "android { flavorDimensions = ['a', 'b'] }\n",
		},
		{
			name:   "new property groovy",
			file:   "build.gradle",
			text:   "android { compileSdkVersion 33 }\n",
			mutate: func(a *AndroidModel) { a.SetNamespace("com.x") },
			want:   "android { compileSdkVersion 33; namespace 'com.x' }\n",
		},
		{
			name:   "new property kotlin",
			file:   "build.gradle.kts",
			text:   "android { compileSdk = 33 }\n",
			mutate: func(a *AndroidModel) { a.SetNamespace("com.x") },
			want:   "android { compileSdk = 33; namespace = \"com.x\" }\n",
		},
		{
			name:   "new block expands",
			file:   "build.gradle",
			text:   "android { compileSdkVersion 33 }\n",
			mutate: func(a *AndroidModel) { a.DefaultConfig().SetMinSdkVersion(21) },
			want:   "android {\n    compileSdkVersion 33\n    defaultConfig {\n        minSdkVersion 21\n    }\n}\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := newTestContext(t, map[string]string{tt.file: tt.text})
			m := mustBuildModel(t, ctx, tt.file)
			tt.mutate(m.Android())
			if err := m.ApplyChanges(); err != nil {
				t.Fatalf("ApplyChanges: %v", err)
			}
			if got := readFile(t, ctx, tt.file); got != tt.want {
				t.Errorf("written = %q, want %q", got, tt.want)
			}
			if m.IsModified() {
				t.Error("model modified after write")
			}
		})
	}
}
